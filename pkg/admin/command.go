package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/marmos91/dittoquota/internal/logger"
	"github.com/marmos91/dittoquota/pkg/quota"
)

// Control operation names.
const (
	OpStartMonitoring   = "start_monitoring_collection"
	OpStopMonitoring    = "stop_monitoring_collection"
	OpSetMaxObjects     = "set_maximum_number_of_objects"
	OpUnsetMaxObjects   = "unset_maximum_number_of_objects"
	OpSetMaxBytes       = "set_maximum_size_in_bytes"
	OpUnsetMaxBytes     = "unset_maximum_size_in_bytes"
	OpRecalculateTotals = "recalculate_totals"
	OpCountObjects      = "count_total_number_of_objects"
	OpCountBytes        = "count_total_size_in_bytes"
	OpGetStatus         = "get_collection_status"
)

// Operations lists every control operation name.
var Operations = []string{
	OpStartMonitoring,
	OpStopMonitoring,
	OpSetMaxObjects,
	OpUnsetMaxObjects,
	OpSetMaxBytes,
	OpUnsetMaxBytes,
	OpRecalculateTotals,
	OpCountObjects,
	OpCountBytes,
	OpGetStatus,
}

const operationPrefix = "logical_quotas_"

var operationAliases = map[string]string{
	"set_maximum_number_of_data_objects":   OpSetMaxObjects,
	"unset_maximum_number_of_data_objects": OpUnsetMaxObjects,
	"count_total_number_of_data_objects":   OpCountObjects,
}

// NormalizeOperation maps an operation name or one of its aliases to the
// canonical name. The second result is false for unknown operations.
func NormalizeOperation(name string) (string, bool) {
	name = strings.TrimPrefix(strings.TrimSpace(name), operationPrefix)
	if canonical, ok := operationAliases[name]; ok {
		return canonical, true
	}
	for _, op := range Operations {
		if op == name {
			return op, true
		}
	}
	return "", false
}

// Command is a control request.
type Command struct {
	Operation  string
	Collection string
	Value      string
}

// Result is the mapping returned by a control operation, keyed by the
// stable status keys. Operations that only change state return an empty
// result.
type Result map[string]uint64

// Execute runs a named control operation.
//
// Errors:
//   - ErrUnsupportedInput: unknown operation, missing collection, or a
//     missing or non-numeric value
//   - ErrInsufficientPrivileges: caller is not an administrator
//   - any error of the underlying operation
func (c *Controller) Execute(ctx context.Context, caller Caller, cmd Command) (Result, error) {
	op, ok := NormalizeOperation(cmd.Operation)
	if !ok {
		return nil, quota.NewUnsupportedInputError("Invalid operation [%s]", cmd.Operation)
	}
	if strings.TrimSpace(cmd.Collection) == "" {
		return nil, quota.NewUnsupportedInputError("Missing collection for operation [%s]", op)
	}

	switch op {
	case OpStartMonitoring:
		totals, err := c.StartMonitoring(ctx, caller, cmd.Collection)
		return totalsResult(totals, err)

	case OpStopMonitoring:
		return emptyResult(c.StopMonitoring(ctx, caller, cmd.Collection))

	case OpSetMaxObjects, OpSetMaxBytes:
		n, err := parseValue(op, cmd.Value)
		if err != nil {
			return nil, err
		}
		if op == OpSetMaxObjects {
			return emptyResult(c.SetMaxObjectCount(ctx, caller, cmd.Collection, n))
		}
		return emptyResult(c.SetMaxSizeBytes(ctx, caller, cmd.Collection, n))

	case OpUnsetMaxObjects:
		return emptyResult(c.UnsetMaxObjectCount(ctx, caller, cmd.Collection))

	case OpUnsetMaxBytes:
		return emptyResult(c.UnsetMaxSizeBytes(ctx, caller, cmd.Collection))

	case OpRecalculateTotals:
		totals, err := c.RecalculateTotals(ctx, caller, cmd.Collection)
		return totalsResult(totals, err)

	case OpCountObjects:
		n, err := c.CountTotalObjects(ctx, caller, cmd.Collection)
		if err != nil {
			return nil, err
		}
		return Result{quota.KeyTotalNumberOfDataObjects: n}, nil

	case OpCountBytes:
		n, err := c.CountTotalBytes(ctx, caller, cmd.Collection)
		if err != nil {
			return nil, err
		}
		return Result{quota.KeyTotalSizeInBytes: n}, nil

	default: // OpGetStatus
		status, err := c.Status(ctx, caller, cmd.Collection)
		if err != nil {
			return nil, err
		}
		return Result(status.Map()), nil
	}
}

// ExecuteJSON parses a JSON control payload and runs it.
//
// The payload is {"operation": "...", "collection": "...", "value": ...}
// where value is a JSON string or number and is only needed by the set
// operations. Malformed payloads and panics raised while handling them are
// reported as ErrUnsupportedInput and never propagate.
func (c *Controller) ExecuteJSON(ctx context.Context, caller Caller, payload []byte) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Control payload handling panicked: %v", r)
			result = nil
			err = quota.NewUnsupportedInputError("Failed to handle control payload: %v", r)
		}
	}()

	cmd, err := ParseCommand(payload)
	if err != nil {
		return nil, err
	}
	return c.Execute(ctx, caller, cmd)
}

type commandPayload struct {
	Operation  string          `json:"operation"`
	Collection string          `json:"collection"`
	Value      json.RawMessage `json:"value,omitempty"`
}

// ParseCommand decodes a JSON control payload.
func ParseCommand(payload []byte) (Command, error) {
	var p commandPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Command{}, quota.NewUnsupportedInputError("Failed to parse control payload: %v", err)
	}
	if p.Operation == "" {
		return Command{}, quota.NewUnsupportedInputError("Missing operation in control payload")
	}

	value, err := rawValue(p.Value)
	if err != nil {
		return Command{}, err
	}

	return Command{
		Operation:  p.Operation,
		Collection: p.Collection,
		Value:      value,
	}, nil
}

// rawValue accepts a JSON string, a JSON number, or nothing.
func rawValue(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", quota.NewUnsupportedInputError("Invalid value: %v", err)
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", quota.NewUnsupportedInputError("Invalid value [%s]", string(raw))
	}
	return n.String(), nil
}

func parseValue(op, value string) (uint64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, quota.NewUnsupportedInputError("Missing value for operation [%s]", op)
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, quota.NewUnsupportedInputError("Invalid value [%s] for operation [%s]", value, op)
	}
	return n, nil
}

func totalsResult(t quota.Totals, err error) (Result, error) {
	if err != nil {
		return nil, err
	}
	return Result{
		quota.KeyTotalNumberOfDataObjects: t.Objects,
		quota.KeyTotalSizeInBytes:         t.Bytes,
	}, nil
}

func emptyResult(err error) (Result, error) {
	if err != nil {
		return nil, err
	}
	return Result{}, nil
}

// String renders the result as sorted key=value pairs.
func (r Result) String() string {
	keys := []string{
		quota.KeyMaximumNumberOfDataObjects,
		quota.KeyMaximumSizeInBytes,
		quota.KeyTotalNumberOfDataObjects,
		quota.KeyTotalSizeInBytes,
	}
	var parts []string
	for _, k := range keys {
		if v, ok := r[k]; ok {
			parts = append(parts, fmt.Sprintf("%s=%d", k, v))
		}
	}
	return strings.Join(parts, " ")
}
