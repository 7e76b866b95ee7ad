package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

func (r *Repository) query(sql string, params ...bigquery.QueryParameter) *bigquery.Query {
	q := r.client.Query(sql)
	q.Parameters = params
	if r.location != "" {
		q.Location = r.location
	}
	return q
}

// runDML runs a statement to completion and returns the number of rows it
// changed (zero for DDL).
func (r *Repository) runDML(ctx context.Context, op string, q *bigquery.Query) (int64, error) {
	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: run query: %w", op, err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: wait for job: %w", op, err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("%s: job failed: %w", op, err)
	}

	r.log.Debug().Str("op", op).Str("job_id", job.ID()).Msg("DML job done")
	return affectedRows(status), nil
}

func affectedRows(status *bigquery.JobStatus) int64 {
	if status == nil || status.Statistics == nil {
		return 0
	}
	if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		return qs.NumDMLAffectedRows
	}
	return 0
}

// readAll runs a query and loads every row into T.
func readAll[T any](ctx context.Context, op string, q *bigquery.Query) ([]T, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: query read: %w", op, err)
	}

	var rows []T
	for {
		var r T
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: iter next: %w", op, err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// readOne returns the first row of a query, or ok=false when it is empty.
func readOne[T any](ctx context.Context, op string, q *bigquery.Query) (T, bool, error) {
	var zero T
	it, err := q.Read(ctx)
	if err != nil {
		return zero, false, fmt.Errorf("%s: query read: %w", op, err)
	}
	var r T
	err = it.Next(&r)
	if err == iterator.Done {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("%s: iter next: %w", op, err)
	}
	return r, true, nil
}

func pageParams(page, limit int) []bigquery.QueryParameter {
	if page < 0 {
		page = 0
	}
	return []bigquery.QueryParameter{
		{Name: "limit", Value: limit},
		{Name: "offset", Value: page * limit},
	}
}
