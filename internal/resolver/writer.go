package resolver

import (
	"context"
	"regexp"
	"sort"

	"RestJSON/internal/db"
	"RestJSON/internal/logger"
	"RestJSON/internal/model"
	"RestJSON/internal/rescue"

	"github.com/Masterminds/squirrel"
	"github.com/samber/lo"
)

// Permitter narrows request input to the fields an action may write.
type Permitter interface {
	Permit(res *model.Resource, action string, input map[string]any) map[string]any
}

// Writer serves the single-record actions.
type Writer struct {
	Exec       db.Executor
	Authorizer Authorizer
	Permitter  Permitter
}

func NewWriter(ex db.Executor, authz Authorizer, p Permitter) *Writer {
	return &Writer{Exec: ex, Authorizer: authz, Permitter: p}
}

var columnName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Find returns the record with id, or nil when there is none. A found
// record is authorized for read.
func (w *Writer) Find(ctx context.Context, res *model.Resource, id string) (*model.Record, error) {
	rec, err := w.load(ctx, res, id)
	if err != nil || rec == nil {
		return nil, err
	}
	if err := w.authorize(ctx, "read", res, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// MustFind is Find that fails with RecordNotFound.
func (w *Writer) MustFind(ctx context.Context, res *model.Resource, id string) (*model.Record, error) {
	rec, err := w.Find(ctx, res, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, rescue.NotFound(res.Singular(), id)
	}
	return rec, nil
}

// New returns an unsaved record holding the resource defaults.
func (w *Writer) New(_ context.Context, res *model.Resource) (*model.Record, error) {
	return model.NewRecord(res.Defaults()), nil
}

// Create inserts the permitted input. A record failing validation is
// returned with Errors set and nothing is written.
func (w *Writer) Create(ctx context.Context, res *model.Resource, input map[string]any) (*model.Record, error) {
	values := res.Defaults()
	for k, v := range w.permit(res, "create", input) {
		values[k] = v
	}
	rec := model.NewRecord(values)
	if err := w.authorize(ctx, "create", res, rec); err != nil {
		return nil, err
	}
	validate(res, rec)
	if !rec.Valid() {
		return rec, nil
	}
	if err := checkColumns(values); err != nil {
		return nil, err
	}

	var q squirrel.Sqlizer = squirrel.Expr("INSERT INTO " + res.Table().Name + " DEFAULT VALUES RETURNING *")
	if cols := sortedColumns(values); len(cols) > 0 {
		q = db.Insert(w.Exec, res.Table().Name).
			Columns(cols...).
			Values(lo.Map(cols, func(c string, _ int) any { return values[c] })...).
			Suffix("RETURNING *")
	}
	rows, err := w.Exec.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return rec, nil
	}
	logger.Debug("record_created", map[string]any{"resource": res.Name(), "id": rows[0][res.PrimaryKey()]})
	return model.NewRecord(rows[0]), nil
}

// Update applies the permitted input to the record with id. An absent
// record yields nil.
func (w *Writer) Update(ctx context.Context, res *model.Resource, id string, input map[string]any) (*model.Record, error) {
	rec, err := w.load(ctx, res, id)
	if err != nil || rec == nil {
		return nil, err
	}
	if err := w.authorize(ctx, "update", res, rec); err != nil {
		return nil, err
	}

	changes := w.permit(res, "update", input)
	delete(changes, res.PrimaryKey())
	for k, v := range changes {
		rec.Values[k] = v
	}
	validate(res, rec)
	if !rec.Valid() || len(changes) == 0 {
		return rec, nil
	}
	if err := checkColumns(changes); err != nil {
		return nil, err
	}

	t := res.Table()
	q := db.Update(w.Exec, t.Name).
		SetMap(changes).
		Where(squirrel.Eq{t.PK: id}).
		Suffix("RETURNING *")
	rows, err := w.Exec.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return model.NewRecord(rows[0]), nil
}

// Destroy deletes the record with id and returns it; nil when it was
// already gone.
func (w *Writer) Destroy(ctx context.Context, res *model.Resource, id string) (*model.Record, error) {
	rec, err := w.load(ctx, res, id)
	if err != nil || rec == nil {
		return nil, err
	}
	if err := w.authorize(ctx, "destroy", res, rec); err != nil {
		return nil, err
	}
	t := res.Table()
	if _, err := w.Exec.Exec(ctx, db.Delete(w.Exec, t.Name).Where(squirrel.Eq{t.PK: id})); err != nil {
		return nil, err
	}
	return rec, nil
}

func (w *Writer) load(ctx context.Context, res *model.Resource, id string) (*model.Record, error) {
	t := res.Table()
	q := db.Select(w.Exec, t.Name+".*").
		From(t.Name).
		Where(squirrel.Eq{t.Col(t.PK): id}).
		Limit(1)
	rows, err := w.Exec.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return model.NewRecord(rows[0]), nil
}

func (w *Writer) permit(res *model.Resource, action string, input map[string]any) map[string]any {
	if w.Permitter == nil {
		out := make(map[string]any, len(input))
		for k, v := range input {
			out[k] = v
		}
		return out
	}
	return w.Permitter.Permit(res, action, input)
}

func (w *Writer) authorize(ctx context.Context, action string, res *model.Resource, rec *model.Record) error {
	if w.Authorizer == nil {
		return nil
	}
	return w.Authorizer.Authorize(ctx, action, res.Name(), rec)
}

func validate(res *model.Resource, rec *model.Record) {
	for _, field := range res.Required() {
		v, ok := rec.Values[field]
		if !ok || v == nil {
			rec.AddError(field, "can't be blank")
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			rec.AddError(field, "can't be blank")
		}
	}
}

func checkColumns(values map[string]any) error {
	for k := range values {
		if !columnName.MatchString(k) {
			return rescue.BadRequest("invalid attribute name %q", k)
		}
	}
	return nil
}

func sortedColumns(values map[string]any) []string {
	cols := lo.Keys(values)
	sort.Strings(cols)
	return cols
}
