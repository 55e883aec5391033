package jobs

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/rosterd/internal/auditctx"
	"github.com/charlesng35/rosterd/internal/services"
	"github.com/charlesng35/rosterd/pkg/logger"
	"github.com/charlesng35/rosterd/pkg/metrics"
)

// StudentBulkWriter applies bulk mutations and invalidates the cache once per batch.
type StudentBulkWriter interface {
	Import(ctx context.Context, inputs []services.StudentInput) (services.ImportResult, error)
	DeleteMany(ctx context.Context, ids []string) (services.DeleteResult, error)
}

// headerAliases maps accepted CSV column titles to student fields.
var headerAliases = map[string]string{
	"surname":   "surname",
	"фамилия":   "surname",
	"name":      "name",
	"имя":       "name",
	"faculty":   "faculty",
	"факультет": "faculty",
	"course":    "course",
	"курс":      "course",
	"grade":     "grade",
	"оценка":    "grade",
}

var requiredColumns = []string{"surname", "name", "faculty", "course", "grade"}

var utf8BOM = []byte("\ufeff")

// BulkLoadHandler imports students from a CSV payload ([]byte or string).
func BulkLoadHandler(students StudentBulkWriter, audit *services.AuditService) Handler {
	log := logger.WithModule("jobs")

	return func(ctx context.Context, payload any) error {
		data, err := csvPayload(payload)
		if err != nil {
			return err
		}

		inputs, malformed, err := ParseStudentCSV(data)
		if err != nil {
			recordJobAudit(ctx, audit, services.AuditActionBulkLoad, "failure", map[string]any{"error": err.Error()})
			return err
		}

		result, err := students.Import(ctx, inputs)
		result.Skipped += malformed

		metrics.BackgroundJobUnits.WithLabelValues(string(KindBulkLoad), "succeeded").Add(float64(result.Created))
		metrics.BackgroundJobUnits.WithLabelValues(string(KindBulkLoad), "skipped").Add(float64(result.Skipped))

		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		recordJobAudit(ctx, audit, services.AuditActionBulkLoad, outcome, map[string]any{
			"succeeded": result.Created,
			"skipped":   result.Skipped,
		})
		log.Info("bulk load processed",
			zap.Int("succeeded", result.Created),
			zap.Int("skipped", result.Skipped),
		)
		return err
	}
}

// BulkDeleteHandler deletes the students named by an id list payload.
func BulkDeleteHandler(students StudentBulkWriter, audit *services.AuditService) Handler {
	log := logger.WithModule("jobs")

	return func(ctx context.Context, payload any) error {
		ids, ok := payload.([]string)
		if !ok {
			return fmt.Errorf("jobs: bulk delete: unexpected payload %T", payload)
		}

		result, err := students.DeleteMany(ctx, ids)
		if err != nil {
			recordJobAudit(ctx, audit, services.AuditActionBulkDelete, "failure", map[string]any{
				"requested": len(ids),
				"error":     err.Error(),
			})
			return err
		}

		metrics.BackgroundJobUnits.WithLabelValues(string(KindBulkDelete), "succeeded").Add(float64(result.Deleted))
		metrics.BackgroundJobUnits.WithLabelValues(string(KindBulkDelete), "skipped").Add(float64(result.Skipped))

		recordJobAudit(ctx, audit, services.AuditActionBulkDelete, "success", map[string]any{
			"succeeded": result.Deleted,
			"skipped":   result.Skipped,
		})
		log.Info("bulk delete processed",
			zap.Int64("succeeded", result.Deleted),
			zap.Int("skipped", result.Skipped),
		)
		return nil
	}
}

// ParseStudentCSV reads student rows from data. The header row may use English
// or Russian column titles in any order. Rows with a wrong field count or a
// non-integer grade are counted as malformed and skipped.
func ParseStudentCSV(data []byte) ([]services.StudentInput, int, error) {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, errors.New("jobs: csv: missing header row")
	}
	if err != nil {
		return nil, 0, fmt.Errorf("jobs: csv: read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, title := range header {
		if field, ok := headerAliases[strings.ToLower(strings.TrimSpace(title))]; ok {
			columns[field] = i
		}
	}
	for _, field := range requiredColumns {
		if _, ok := columns[field]; !ok {
			return nil, 0, fmt.Errorf("jobs: csv: missing %s column", field)
		}
	}

	var (
		inputs    []services.StudentInput
		malformed int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				malformed++
				continue
			}
			return inputs, malformed, fmt.Errorf("jobs: csv: read row: %w", err)
		}
		if len(record) != len(header) {
			malformed++
			continue
		}

		grade, err := strconv.Atoi(strings.TrimSpace(record[columns["grade"]]))
		if err != nil {
			malformed++
			continue
		}
		inputs = append(inputs, services.StudentInput{
			Surname: record[columns["surname"]],
			Name:    record[columns["name"]],
			Faculty: record[columns["faculty"]],
			Course:  record[columns["course"]],
			Grade:   grade,
		})
	}
	return inputs, malformed, nil
}

func csvPayload(payload any) ([]byte, error) {
	switch value := payload.(type) {
	case []byte:
		return value, nil
	case string:
		return []byte(value), nil
	default:
		return nil, fmt.Errorf("jobs: bulk load: unexpected payload %T", payload)
	}
}

func recordJobAudit(ctx context.Context, audit *services.AuditService, action, result string, metadata map[string]any) {
	actor, _ := auditctx.FromContext(ctx)
	audit.Record(ctx, services.AuditEntry{
		Username:  actor.Username,
		IPAddress: actor.IPAddress,
		Action:    action,
		Resource:  "students",
		Result:    result,
		Metadata:  metadata,
	})
}
