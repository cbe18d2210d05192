package store

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
)

func toRow(rec *types.JobRecord) (*types.IngestionJobRow, error) {
	steps := rec.Steps
	if steps == nil {
		steps = []types.JobStep{}
	}
	logs := rec.Logs
	if logs == nil {
		logs = []types.LogEntry{}
	}
	stepsRaw, err := json.Marshal(steps)
	if err != nil {
		return nil, fmt.Errorf("encode steps: %w", err)
	}
	logsRaw, err := json.Marshal(logs)
	if err != nil {
		return nil, fmt.Errorf("encode logs: %w", err)
	}
	var resultRaw datatypes.JSON
	if rec.Result != nil {
		b, err := json.Marshal(rec.Result)
		if err != nil {
			return nil, fmt.Errorf("encode result: %w", err)
		}
		resultRaw = datatypes.JSON(b)
	}
	return &types.IngestionJobRow{
		ID:        rec.ID,
		ClanTag:   rec.ClanTag,
		Status:    string(rec.Status),
		Attempt:   rec.Attempt,
		Error:     rec.Error,
		Steps:     datatypes.JSON(stepsRaw),
		Logs:      datatypes.JSON(logsRaw),
		Result:    resultRaw,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

func fromRow(row *types.IngestionJobRow) (*types.JobRecord, error) {
	rec := &types.JobRecord{
		ID:        row.ID,
		ClanTag:   row.ClanTag,
		Status:    types.JobStatus(row.Status),
		Attempt:   row.Attempt,
		Error:     row.Error,
		Steps:     []types.JobStep{},
		Logs:      []types.LogEntry{},
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
	if len(row.Steps) > 0 {
		if err := json.Unmarshal(row.Steps, &rec.Steps); err != nil {
			return nil, fmt.Errorf("decode steps: %w", err)
		}
	}
	if len(row.Logs) > 0 {
		if err := json.Unmarshal(row.Logs, &rec.Logs); err != nil {
			return nil, fmt.Errorf("decode logs: %w", err)
		}
	}
	if len(row.Result) > 0 && string(row.Result) != "null" {
		var res types.JobResult
		if err := json.Unmarshal(row.Result, &res); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		rec.Result = &res
	}
	return rec, nil
}
