package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/codegraphio/codegraph/helper"
	"github.com/codegraphio/codegraph/model"
	"github.com/codegraphio/codegraph/sql"
	"github.com/lib/pq"
)

// FilesDBHandlerFunctions defines the interface for file database operations.
type FilesDBHandlerFunctions interface {
	UpsertFile(file *model.FileRecord) error
	SelectFile(sourceFile string) (*model.FileRecord, error)
	SelectAllFiles() ([]*model.FileRecord, error)
	DeleteFile(sourceFile string) error
}

// FilesDBHandler handles file-related database operations
type FilesDBHandler struct {
	db *helper.Database
}

// NewFilesDBHandler creates a new files database handler.
// It initializes the database connection and loads file-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewFilesDBHandler(db *helper.Database, force bool) (*FilesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	filesDbHandler := &FilesDBHandler{
		db: db,
	}

	err := sql.LoadFilesSql(filesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load files sql", err)
	}

	err = filesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized FilesDBHandler")

	return filesDbHandler, nil
}

// CreateTable creates the 'files' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *FilesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_files();`)
	if err != nil {
		log.Panicf("error initializing files table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table files")

	return nil
}

// UpsertFile inserts or fully replaces the per-file aggregate record.
// The record is updated in place with the stored row, including timestamps.
func (h *FilesDBHandler) UpsertFile(file *model.FileRecord) error {
	return h.UpsertFileTx(h.db.Instance, file)
}

// UpsertFileTx is UpsertFile running on the given Querier.
func (h *FilesDBHandler) UpsertFileTx(q Querier, file *model.FileRecord) error {
	row := q.QueryRow(
		`SELECT * FROM upsert_file($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		file.SourceFile,
		file.Summary,
		pq.Array(file.Tags),
		pq.Array(file.Dependencies),
		file.ProcessingInfo.ClassesProcessed,
		file.ProcessingInfo.MethodsProcessed,
		file.ProcessingInfo.Strategy,
		file.ProcessingInfo.FallbackCount,
		file.ContentHash,
	)

	err := scanFile(row, file)
	if err != nil {
		return err
	}

	return nil
}

// SelectFile retrieves the aggregate record of a source file
func (h *FilesDBHandler) SelectFile(sourceFile string) (*model.FileRecord, error) {
	file := &model.FileRecord{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_file($1)`,
		sourceFile,
	)

	err := scanFile(row, file)
	if err != nil {
		return nil, err
	}

	return file, nil
}

// SelectAllFiles retrieves all file records ordered by source file
func (h *FilesDBHandler) SelectAllFiles() ([]*model.FileRecord, error) {
	rows, err := h.db.Instance.Query(`SELECT * FROM select_all_files()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var files []*model.FileRecord
	for rows.Next() {
		file := &model.FileRecord{}
		err := scanFile(rows, file)
		if err != nil {
			return nil, err
		}

		files = append(files, file)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return files, nil
}

// DeleteFile deletes the aggregate record of a source file
func (h *FilesDBHandler) DeleteFile(sourceFile string) error {
	return h.DeleteFileTx(h.db.Instance, sourceFile)
}

// DeleteFileTx is DeleteFile running on the given Querier.
func (h *FilesDBHandler) DeleteFileTx(q Querier, sourceFile string) error {
	_, err := q.Exec(
		`SELECT delete_file($1)`,
		sourceFile,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func scanFile(row interface{ Scan(dest ...any) error }, file *model.FileRecord) error {
	err := row.Scan(
		&file.SourceFile,
		&file.Summary,
		pq.Array(&file.Tags),
		pq.Array(&file.Dependencies),
		&file.ProcessingInfo.ClassesProcessed,
		&file.ProcessingInfo.MethodsProcessed,
		&file.ProcessingInfo.Strategy,
		&file.ProcessingInfo.FallbackCount,
		&file.ContentHash,
		&file.CreatedAt,
		&file.UpdatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}
	return nil
}
