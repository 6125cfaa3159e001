package pipeline

import (
	"context"
	"testing"

	"github.com/codegraphio/codegraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicProviderEnrichClass(t *testing.T) {
	provider := NewHeuristicProvider()

	t.Run("Controller class", func(t *testing.T) {
		chunk := &Chunk{
			Kind:        ChunkClass,
			Node:        &model.SyntaxNode{Kind: model.NodeKindClass, Name: "CustomerController"},
			MethodNames: []string{"GetAllCustomers"},
		}

		result, err := provider.Enrich(context.Background(), chunk)

		require.NoError(t, err, "Expected Enrich to not return an error")
		assert.Contains(t, result.Tags, "controller")
		assert.Contains(t, result.Summary, "customer")
		assert.Equal(t, model.QualityOK, result.Quality)
		assert.Empty(t, result.Dependencies, "Expected no dependencies without base types")
	})

	t.Run("Service class", func(t *testing.T) {
		chunk := &Chunk{
			Kind: ChunkClass,
			Node: &model.SyntaxNode{Kind: model.NodeKindClass, Name: "OrderService"},
		}

		result, err := provider.Enrich(context.Background(), chunk)

		require.NoError(t, err)
		assert.Contains(t, result.Tags, "service")
		assert.Contains(t, result.Tags, "business-logic")
	})

	t.Run("Repository class", func(t *testing.T) {
		chunk := &Chunk{
			Kind: ChunkClass,
			Node: &model.SyntaxNode{Kind: model.NodeKindClass, Name: "CustomerRepository"},
		}

		result, err := provider.Enrich(context.Background(), chunk)

		require.NoError(t, err)
		assert.Contains(t, result.Tags, "repository")
		assert.Contains(t, result.Tags, "data-access")
	})

	t.Run("Plain class is a domain entity", func(t *testing.T) {
		chunk := &Chunk{
			Kind: ChunkClass,
			Node: &model.SyntaxNode{Kind: model.NodeKindClass, Name: "Customer"},
		}

		result, err := provider.Enrich(context.Background(), chunk)

		require.NoError(t, err)
		assert.Contains(t, result.Tags, "entity")
		assert.Equal(t, "Domain entity representing customer", result.Summary)
	})

	t.Run("Base types become dependencies", func(t *testing.T) {
		chunk := &Chunk{
			Kind: ChunkClass,
			Node: &model.SyntaxNode{
				Kind:      model.NodeKindClass,
				Name:      "CustomerService",
				BaseTypes: []string{"ICustomerService", "BaseService"},
			},
		}

		result, err := provider.Enrich(context.Background(), chunk)

		require.NoError(t, err)
		assert.Equal(t, []string{"ICustomerService", "BaseService"}, result.Dependencies)
	})
}

func TestHeuristicProviderEnrichMethod(t *testing.T) {
	provider := NewHeuristicProvider()

	t.Run("Getter method", func(t *testing.T) {
		chunk := &Chunk{
			Kind:      ChunkMethod,
			Node:      &model.SyntaxNode{Kind: model.NodeKindMethod, Name: "GetAllCustomers"},
			ClassName: "CustomerController",
		}

		result, err := provider.Enrich(context.Background(), chunk)

		require.NoError(t, err)
		assert.Contains(t, result.Tags, "read")
		assert.Contains(t, result.Tags, "getter")
		assert.Equal(t, "Retrieves allcustomers data", result.Summary)
	})

	t.Run("Create method", func(t *testing.T) {
		chunk := &Chunk{
			Kind: ChunkMethod,
			Node: &model.SyntaxNode{Kind: model.NodeKindMethod, Name: "CreateOrder"},
		}

		result, err := provider.Enrich(context.Background(), chunk)

		require.NoError(t, err)
		assert.Contains(t, result.Tags, "write")
		assert.Contains(t, result.Tags, "create")
	})

	t.Run("Constructor", func(t *testing.T) {
		chunk := &Chunk{
			Kind:      ChunkMethod,
			Node:      &model.SyntaxNode{Kind: model.NodeKindConstructor, Name: "Customer"},
			ClassName: "Customer",
		}

		result, err := provider.Enrich(context.Background(), chunk)

		require.NoError(t, err)
		assert.Contains(t, result.Tags, "initialization")
		assert.Equal(t, "Initializes a new instance of Customer", result.Summary)
	})

	t.Run("Parameter and return types become dependencies", func(t *testing.T) {
		chunk := &Chunk{
			Kind: ChunkMethod,
			Node: &model.SyntaxNode{
				Kind:       model.NodeKindMethod,
				Name:       "GetCustomer",
				ReturnType: "Task<Customer>",
				Parameters: []model.Parameter{
					{Name: "id", Type: "int"},
					{Name: "filter", Type: "CustomerFilter"},
				},
			},
		}

		result, err := provider.Enrich(context.Background(), chunk)

		require.NoError(t, err)
		assert.Equal(t, []string{"Customer", "CustomerFilter"}, result.Dependencies, "Expected builtins filtered and generics unwrapped")
	})

	t.Run("Cancelled context returns error", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		chunk := &Chunk{
			Kind: ChunkMethod,
			Node: &model.SyntaxNode{Kind: model.NodeKindMethod, Name: "DoWork"},
		}

		_, err := provider.Enrich(ctx, chunk)

		assert.ErrorIs(t, err, context.Canceled)
	})
}

