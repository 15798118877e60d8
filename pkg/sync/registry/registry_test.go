package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confluxdata/conflux/pkg/sync/core"
	"github.com/confluxdata/conflux/pkg/syncerrors"
)

type nopAdapter struct{}

func (nopAdapter) FetchPage(context.Context, core.Cursor, int) (core.Page, error) {
	return core.Page{}, nil
}

func TestRegisterAndCreate(t *testing.T) {
	r := NewRegistry()

	var gotParams AdapterParams
	err := r.Register("helpdesk", func(params AdapterParams) (core.SourceAdapter, error) {
		gotParams = params
		return nopAdapter{}, nil
	})
	require.NoError(t, err)

	adapter, err := r.Create("helpdesk", AdapterParams{
		OrganizationID: "org-1",
		EntityType:     "ticket",
		Options:        map[string]string{"base_url": "https://api.example.com"},
	})
	require.NoError(t, err)
	assert.NotNil(t, adapter)
	assert.Equal(t, "org-1", gotParams.OrganizationID)
	assert.Equal(t, "ticket", gotParams.EntityType)
	assert.Equal(t, "https://api.example.com", gotParams.Options["base_url"])
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	factory := func(AdapterParams) (core.SourceAdapter, error) { return nopAdapter{}, nil }

	require.NoError(t, r.Register("helpdesk", factory))
	err := r.Register("helpdesk", factory)
	require.Error(t, err)
	assert.True(t, syncerrors.IsType(err, syncerrors.ErrorTypeConfig))
}

func TestCreateUnknownSource(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create("missing", AdapterParams{})
	require.Error(t, err)
	assert.True(t, syncerrors.IsType(err, syncerrors.ErrorTypeConfig))
}

func TestCreateFactoryError(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("broken", func(AdapterParams) (core.SourceAdapter, error) {
		return nil, syncerrors.New(syncerrors.ErrorTypeConfig, "missing credentials")
	}))

	_, err := r.Create("broken", AdapterParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestListAndHas(t *testing.T) {
	r := NewRegistry()
	factory := func(AdapterParams) (core.SourceAdapter, error) { return nopAdapter{}, nil }

	require.NoError(t, r.Register("helpdesk", factory))
	require.NoError(t, r.Register("crm", factory))

	assert.ElementsMatch(t, []string{"helpdesk", "crm"}, r.List())
	assert.True(t, r.Has("crm"))
	assert.False(t, r.Has("billing"))

	r.Clear()
	assert.Empty(t, r.List())
}
