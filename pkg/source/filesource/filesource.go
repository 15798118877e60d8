// Package filesource is a source adapter that serves records from JSONL
// files on disk. Each entity type maps to one <entity>.jsonl file under a
// base directory; lines are record envelopes in the source wire format.
// It exists for replaying captured vendor exports and for end-to-end runs
// without a live vendor API.
package filesource

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/confluxdata/conflux/pkg/sync/core"
	"github.com/confluxdata/conflux/pkg/sync/registry"
	"github.com/confluxdata/conflux/pkg/syncerrors"
)

// Name is the registry key for this adapter.
const Name = "file"

func init() {
	// Registration can only fail on a duplicate name, which would be a
	// programming error here.
	_ = registry.Register(Name, func(params registry.AdapterParams) (core.SourceAdapter, error) {
		dir := params.Options["dir"]
		if dir == "" {
			return nil, syncerrors.New(syncerrors.ErrorTypeConfig, "file source requires a dir option")
		}
		return New(dir, params.EntityType)
	})
}

// wireRecord is the on-disk line format.
type wireRecord struct {
	ID         string                 `json:"id"`
	CreatedAt  time.Time              `json:"created_at"`
	ModifiedAt time.Time              `json:"modified_at"`
	Deleted    bool                   `json:"deleted,omitempty"`
	Fields     map[string]interface{} `json:"fields"`
}

// Adapter pages through one entity type's JSONL file in (modifiedAt,
// naturalKey) order. The file is loaded once on first fetch and held in
// memory; files are replay fixtures, not production-scale datasets.
type Adapter struct {
	path    string
	records []core.RawRecord
	loaded  bool
}

// New creates a file adapter for one entity type rooted at dir.
func New(dir, entityType string) (*Adapter, error) {
	if entityType == "" {
		return nil, syncerrors.New(syncerrors.ErrorTypeConfig, "entity type is required")
	}
	return &Adapter{path: filepath.Join(dir, entityType+".jsonl")}, nil
}

var _ core.SourceAdapter = (*Adapter)(nil)
var _ core.CountHint = (*Adapter)(nil)

// FetchPage returns the next page of records strictly after the cursor
// position. Records sharing the cursor's timestamp are skipped up to and
// including the cursor's last key, so resumes never duplicate or drop a
// same-timestamp record.
func (a *Adapter) FetchPage(ctx context.Context, cursor core.Cursor, pageSize int) (core.Page, error) {
	if err := ctx.Err(); err != nil {
		return core.Page{}, syncerrors.Wrap(err, syncerrors.ErrorTypeTimeout, "fetch canceled")
	}
	if err := a.load(); err != nil {
		return core.Page{}, err
	}

	start := a.searchFrom(cursor)
	end := start + pageSize
	if end > len(a.records) {
		end = len(a.records)
	}

	page := core.Page{
		Records: a.records[start:end],
		HasMore: end < len(a.records),
	}
	if end > start {
		last := a.records[end-1]
		page.NextCursor = core.TimeCursor(last.ModifiedAt).WithLastKey(last.NaturalKey)
	} else {
		page.NextCursor = cursor
	}
	return page, nil
}

// EstimatedTotal reports the file's record count once loaded, zero before.
func (a *Adapter) EstimatedTotal(context.Context) int64 {
	return int64(len(a.records))
}

func (a *Adapter) load() error {
	if a.loaded {
		return nil
	}

	f, err := os.Open(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return syncerrors.Wrap(err, syncerrors.ErrorTypeConfig, fmt.Sprintf("source file %s not found", a.path))
		}
		return syncerrors.Wrap(err, syncerrors.ErrorTypeConnection, "failed to open source file")
	}
	defer f.Close()

	var records []core.RawRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var w wireRecord
		if err := gojson.Unmarshal([]byte(text), &w); err != nil {
			return syncerrors.Wrap(err, syncerrors.ErrorTypeData, fmt.Sprintf("malformed record at %s:%d", a.path, line))
		}
		records = append(records, core.RawRecord{
			NaturalKey: w.ID,
			CreatedAt:  w.CreatedAt,
			ModifiedAt: w.ModifiedAt,
			Deleted:    w.Deleted,
			Fields:     w.Fields,
		})
	}
	if err := scanner.Err(); err != nil {
		return syncerrors.Wrap(err, syncerrors.ErrorTypeConnection, "failed to read source file")
	}

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].ModifiedAt.Equal(records[j].ModifiedAt) {
			return records[i].ModifiedAt.Before(records[j].ModifiedAt)
		}
		return records[i].NaturalKey < records[j].NaturalKey
	})

	a.records = records
	a.loaded = true
	return nil
}

// searchFrom finds the index of the first record the cursor has not yet
// consumed.
func (a *Adapter) searchFrom(cursor core.Cursor) int {
	if cursor.IsZero() {
		return 0
	}
	switch cursor.Kind {
	case core.CursorKindOffset:
		if cursor.Offset > int64(len(a.records)) {
			return len(a.records)
		}
		return int(cursor.Offset)
	case core.CursorKindTime:
		i := sort.Search(len(a.records), func(i int) bool {
			return !a.records[i].ModifiedAt.Before(cursor.Time)
		})
		// Skip same-timestamp records already consumed per the tie-break key.
		if cursor.LastKey != "" {
			for i < len(a.records) && a.records[i].ModifiedAt.Equal(cursor.Time) && a.records[i].NaturalKey <= cursor.LastKey {
				i++
			}
		}
		return i
	default:
		return 0
	}
}
