// Package bitable wraps the Base (bitable) record endpoints.
package bitable

import (
	"context"
	"iter"
	"net/http"

	"github.com/myzkey/lark-kit/core"
)

const (
	recordsURL = "/open-apis/bitable/v1/apps/:app_token/tables/:table_id/records"
	recordURL  = "/open-apis/bitable/v1/apps/:app_token/tables/:table_id/records/:record_id"
)

type Person struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	EnName string `json:"en_name,omitempty"`
	Email  string `json:"email,omitempty"`
}

// Record is one row of a table
type Record struct {
	RecordID         string         `json:"record_id,omitempty"`
	Fields           map[string]any `json:"fields"`
	CreatedBy        *Person        `json:"created_by,omitempty"`
	CreatedTime      int64          `json:"created_time,omitempty"`
	LastModifiedBy   *Person        `json:"last_modified_by,omitempty"`
	LastModifiedTime int64          `json:"last_modified_time,omitempty"`
	SharedURL        string         `json:"shared_url,omitempty"`
	RecordURL        string         `json:"record_url,omitempty"`
}

// Table addresses a table inside a Base app
type Table struct {
	AppToken string
	TableID  string
}

func (t Table) path() map[string]string {
	return map[string]string{"app_token": t.AppToken, "table_id": t.TableID}
}

func (t Table) recordPath(recordID string) map[string]string {
	path := t.path()
	path["record_id"] = recordID
	return path
}

// ListOptions are the optional filters of a list call. Unset fields are
// omitted from the query.
type ListOptions struct {
	ViewID            string
	Filter            string
	Sort              string
	FieldNames        string
	UserIDType        string
	TextFieldAsArray  *bool
	AutomaticFields   *bool
	DisplayFormulaRef *bool
	PageSize          int
}

func (o ListOptions) params(pageToken string) core.Params {
	var query core.Params
	addString := func(key, value string) {
		if value != "" {
			query = query.Add(key, value)
		}
	}
	addString("view_id", o.ViewID)
	addString("filter", o.Filter)
	addString("sort", o.Sort)
	addString("field_names", o.FieldNames)
	addString("user_id_type", o.UserIDType)
	query = query.Add("text_field_as_array", o.TextFieldAsArray)
	query = query.Add("automatic_fields", o.AutomaticFields)
	query = query.Add("display_formula_ref", o.DisplayFormulaRef)
	addString("page_token", pageToken)
	if o.PageSize > 0 {
		query = query.Add("page_size", o.PageSize)
	}
	return query
}

type recordData struct {
	Record *Record `json:"record"`
}

type RecordClient struct {
	caller *core.Caller
}

func NewRecordClient(caller *core.Caller) *RecordClient {
	return &RecordClient{caller: caller}
}

// Create adds a record with fields
func (c *RecordClient) Create(ctx context.Context, table Table, fields map[string]any) (*Record, error) {
	data, err := core.Invoke[recordData](ctx, c.caller, "Failed to create record", core.Request{
		Method: http.MethodPost,
		URL:    recordsURL,
		Path:   table.path(),
		Body:   map[string]any{"fields": fields},
	})
	return unwrapRecord(data, err)
}

// Get fetches one record
func (c *RecordClient) Get(ctx context.Context, table Table, recordID string) (*Record, error) {
	data, err := core.Invoke[recordData](ctx, c.caller, "Failed to get record", core.Request{
		Method: http.MethodGet,
		URL:    recordURL,
		Path:   table.recordPath(recordID),
	})
	return unwrapRecord(data, err)
}

// Update replaces the given fields of a record
func (c *RecordClient) Update(ctx context.Context, table Table, recordID string, fields map[string]any) (*Record, error) {
	data, err := core.Invoke[recordData](ctx, c.caller, "Failed to update record", core.Request{
		Method: http.MethodPut,
		URL:    recordURL,
		Path:   table.recordPath(recordID),
		Body:   map[string]any{"fields": fields},
	})
	return unwrapRecord(data, err)
}

// Delete removes a record
func (c *RecordClient) Delete(ctx context.Context, table Table, recordID string) error {
	_, err := core.Invoke[struct {
		Deleted  bool   `json:"deleted"`
		RecordID string `json:"record_id"`
	}](ctx, c.caller, "Failed to delete record", core.Request{
		Method: http.MethodDelete,
		URL:    recordURL,
		Path:   table.recordPath(recordID),
	})
	return err
}

// List returns one page of records
func (c *RecordClient) List(ctx context.Context, table Table, opts ListOptions, pageToken string) (core.PageResult[Record], error) {
	page, err := core.Invoke[core.PageResult[Record]](ctx, c.caller, "Failed to list records", core.Request{
		Method: http.MethodGet,
		URL:    recordsURL,
		Path:   table.path(),
		Query:  opts.params(pageToken),
	})
	if err != nil {
		return core.PageResult[Record]{}, err
	}
	return *page, nil
}

// ListAll iterates over every record matching opts
func (c *RecordClient) ListAll(ctx context.Context, table Table, opts ListOptions) iter.Seq2[Record, error] {
	return core.Paginate(ctx, func(ctx context.Context, pageToken string) (core.PageResult[Record], error) {
		return c.List(ctx, table, opts, pageToken)
	})
}

func unwrapRecord(data *recordData, err error) (*Record, error) {
	if err != nil {
		return nil, err
	}
	if data.Record == nil {
		return nil, &core.ValidationError{Message: "response is missing record"}
	}
	return data.Record, nil
}
