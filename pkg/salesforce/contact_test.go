package salesforce

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Query(ctx context.Context, soql string, out any) error {
	args := m.Called(ctx, soql, out)
	if fn, ok := args.Get(0).(func(any)); ok {
		fn(out)
		return nil
	}
	return args.Error(0)
}

func (m *mockClient) InsertOne(ctx context.Context, sObjectName string, record map[string]any) (string, error) {
	args := m.Called(ctx, sObjectName, record)
	return args.String(0), args.Error(1)
}

func (m *mockClient) UpdateOne(ctx context.Context, sObjectName, id string, fields map[string]any) error {
	return m.Called(ctx, sObjectName, id, fields).Error(0)
}

const findJane = "SELECT Id, Email FROM Contact WHERE Email = 'jane@acme.com' LIMIT 1"

func TestUpsertContactByEmail_Updates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mc := new(mockClient)
	mc.On("Query", ctx, findJane, mock.Anything).Return(func(out any) {
		*out.(*[]Contact) = []Contact{{ID: "003a", Email: "jane@acme.com"}}
	})
	fields := map[string]any{"Title": "CEO"}
	mc.On("UpdateOne", ctx, "Contact", "003a", fields).Return(nil)

	id, err := UpsertContactByEmail(ctx, mc, "jane@acme.com", fields)
	require.NoError(t, err)
	assert.Equal(t, "003a", id)
	mc.AssertExpectations(t)
}

func TestUpsertContactByEmail_Creates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mc := new(mockClient)
	mc.On("Query", ctx, findJane, mock.Anything).Return(func(any) {})
	mc.On("InsertOne", ctx, "Contact", map[string]any{
		"Email":     "jane@acme.com",
		"FirstName": "Jane",
		"LastName":  "Unknown",
	}).Return("003new", nil)

	id, err := UpsertContactByEmail(ctx, mc, "jane@acme.com", map[string]any{"FirstName": "Jane"})
	require.NoError(t, err)
	assert.Equal(t, "003new", id)
	mc.AssertExpectations(t)
}

func TestUpsertContactByEmail_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := UpsertContactByEmail(ctx, new(mockClient), "", nil)
	require.Error(t, err)

	mc := new(mockClient)
	mc.On("Query", ctx, findJane, mock.Anything).Return(assert.AnError)
	_, err = UpsertContactByEmail(ctx, mc, "jane@acme.com", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "find contact by email")
}

func TestEscapeSoql(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `o\'brien@x.com`, escapeSoql("o'brien@x.com"))
	assert.Equal(t, `a\\b`, escapeSoql(`a\b`))
}
