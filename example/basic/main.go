package main

import (
	"context"
	"fmt"
	"log"

	"github.com/codegraphio/codegraph"
	"github.com/codegraphio/codegraph/helper"
	"github.com/codegraphio/codegraph/model"
)

// Parser output for a small C# file: a controller class with one method
// depending on a service that is declared in a second file.
const controllerAST = `[
	{
		"type": "Class",
		"name": "CustomerController",
		"startLine": 5,
		"endLine": 20,
		"body": [
			{
				"type": "Method",
				"name": "GetAllCustomers",
				"startLine": 10,
				"endLine": 14,
				"returnType": "Task<CustomerService>"
			}
		]
	}
]`

const serviceAST = `[
	{
		"type": "Class",
		"name": "CustomerService",
		"startLine": 3,
		"endLine": 30,
		"baseTypes": ["ICustomerService"]
	}
]`

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	g, err := codegraph.New(dbConfig, 384)
	if err != nil {
		log.Fatalf("Failed to create code graph: %v", err)
	}
	defer g.Close()

	// Set up the enrichment pipeline. Mock uses the deterministic heuristic
	// provider; set Mock to false and point BaseURL at an OpenAI-compatible
	// endpoint to enrich with a model instead.
	enrichConfig := model.DefaultEnrichmentConfiguration()
	enrichConfig.Mock = true
	if err := g.UseDefaultPipeline(enrichConfig); err != nil {
		log.Fatalf("Failed to set up pipeline: %v", err)
	}

	// Process both files. The controller is ingested first, so its
	// dependency on CustomerService starts as a stub and is promoted when
	// the service's file arrives.
	files := map[string][]byte{
		"Controllers/CustomerController.cs": []byte(controllerAST),
		"Services/CustomerService.cs":       []byte(serviceAST),
	}

	fmt.Println("Processing files...")
	failed := g.ProcessFiles(context.Background(), files, 2)
	if len(failed) > 0 {
		log.Fatalf("Failed to process files: %v", failed)
	}

	// Inspect the resulting graph
	for sourceFile := range files {
		entities, err := g.Entities.SelectEntitiesByFile(sourceFile)
		if err != nil {
			log.Fatalf("Failed to select entities: %v", err)
		}

		fmt.Printf("\n--- %s ---\n", sourceFile)
		for _, entity := range entities {
			fmt.Printf("%s (%s): %s\n", entity.Name, entity.Kind, entity.Summary)

			edges, err := g.Relationships.SelectRelationshipsFrom(entity.UID, "")
			if err != nil {
				log.Fatalf("Failed to select relationships: %v", err)
			}
			for _, edge := range edges {
				fmt.Printf("  %s -> %s\n", edge.Kind, edge.ToUID)
			}
		}
	}

	// Follow the transitive dependency closure from the method
	methodUID := model.EntityUID("Controllers/CustomerController.cs", model.NodeKindMethod, "GetAllCustomers")
	refs, err := g.DependencyClosure(methodUID, 5)
	if err != nil {
		log.Fatalf("Failed to traverse dependencies: %v", err)
	}

	fmt.Printf("\nDependency closure of GetAllCustomers (%d entities):\n", len(refs))
	for _, ref := range refs {
		fmt.Printf("  depth %d: %s (%s)\n", ref.Depth, ref.Name, ref.Kind)
	}

	fmt.Println("\nBasic example completed successfully!")
}
