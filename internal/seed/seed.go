// Package seed loads initial expenses from a JSON file into a store.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/store"
)

// record is one entry of the seed file. Amount may be a number or a string.
type record struct {
	Amount    core.Money `json:"amount"`
	Date      string     `json:"date"`
	Note      string     `json:"note"`
	Category  string     `json:"category"`
	CreatedBy string     `json:"created_by"`
}

// Result reports what a load did.
type Result struct {
	Loaded  int
	Skipped int
}

// Load reads a JSON array of expenses from path and stores every record
// that has a date and is not already stored with the same amount, date and
// note. Bad records are logged and skipped. A missing file loads nothing.
func Load(ctx context.Context, path string, st store.ExpenseStore, logger *log.Logger) (Result, error) {
	if logger == nil {
		logger = log.Default(log.ComponentSeed)
	}
	logger = logger.WithComponent(log.ComponentSeed)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.WarnContext(ctx, "Seed file not found", "path", path)
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("read seed file: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Result{}, fmt.Errorf("parse seed file %s: %w", path, err)
	}

	var res Result
	for i, item := range raw {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		e, err := decode(item)
		if err != nil {
			logger.WarnContext(ctx, "Skipping seed record", "index", i, log.FieldError, err)
			res.Skipped++
			continue
		}

		exists, err := st.Exists(ctx, e)
		if err != nil {
			return res, fmt.Errorf("check seed record %d: %w", i, err)
		}
		if exists {
			res.Skipped++
			continue
		}

		if _, err := st.Create(ctx, e); err != nil {
			logger.WarnContext(ctx, "Error storing seed record", "index", i, log.FieldError, err)
			res.Skipped++
			continue
		}
		res.Loaded++
	}

	logger.InfoContext(ctx, "Seed records loaded",
		log.FieldCount, res.Loaded,
		"skipped", res.Skipped,
		"path", path)
	return res, nil
}

func decode(item json.RawMessage) (core.Expense, error) {
	var r record
	if err := json.Unmarshal(item, &r); err != nil {
		return core.Expense{}, err
	}
	if strings.TrimSpace(r.Date) == "" {
		return core.Expense{}, fmt.Errorf("%w: date", core.ErrMissingField)
	}
	date, err := core.ParseDate(r.Date)
	if err != nil {
		return core.Expense{}, err
	}

	e := core.Expense{
		Amount:    r.Amount,
		Date:      date,
		Note:      r.Note,
		Category:  r.Category,
		CreatedBy: r.CreatedBy,
	}
	if strings.TrimSpace(e.Category) == "" {
		e.Category = core.DefaultCategory
	}
	if strings.TrimSpace(e.CreatedBy) == "" {
		e.CreatedBy = core.DefaultCreatedBy
	}
	return e, e.Validate()
}
