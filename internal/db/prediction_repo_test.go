package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sunsetcast/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock Rows ---

type mockRows struct {
	data    [][]any
	idx     int
	closed  bool
	scanErr error
	errVal  error
}

func newMockRows(data [][]any) *mockRows {
	return &mockRows{data: data, idx: -1}
}

func (r *mockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.data)
}

func (r *mockRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	row := r.data[r.idx]
	for i, d := range dest {
		switch v := d.(type) {
		case *time.Time:
			*v = row[i].(time.Time)
		case *int:
			*v = row[i].(int)
		case *int64:
			*v = row[i].(int64)
		case *float64:
			*v = row[i].(float64)
		case *string:
			*v = row[i].(string)
		}
	}
	return nil
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.errVal }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }

// --- Fixtures ---

func testPrediction() types.SunsetPrediction {
	return types.SunsetPrediction{
		Score:      96,
		Rating:     types.RatingAmazing,
		SunsetTime: time.Date(2026, 8, 30, 19, 42, 0, 0, time.UTC),
		Factors: types.AtmosphericSample{
			CloudCover: 50, CloudLow: 10, CloudMid: 30, CloudHigh: 40,
			Humidity: 60, VisibilityM: 10000,
			PM25: 15, PM10: 40, AOD: 0.3,
		},
	}
}

var testLoc = types.Location{Lat: 37.3394, Lon: -121.895}

// --- Tests ---

func TestPredictionRepository_Insert_NewRow(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPredictionRepository(dbx)

	dbx.On("Exec", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "ON CONFLICT ON CONSTRAINT predictions_location_sunset_key DO NOTHING")
	}), mock.Anything).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	written, err := repo.Insert(context.Background(), testLoc, types.DataCurrent, testPrediction())
	require.NoError(t, err)
	assert.True(t, written)
	dbx.AssertExpectations(t)
}

func TestPredictionRepository_Insert_ConflictIsNoop(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPredictionRepository(dbx)

	dbx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 0"), nil)

	written, err := repo.Insert(context.Background(), testLoc, types.DataCurrent, testPrediction())
	require.NoError(t, err)
	assert.False(t, written)
}

func TestPredictionRepository_Insert_DBError(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPredictionRepository(dbx)

	dbx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	_, err := repo.Insert(context.Background(), testLoc, types.DataCurrent, testPrediction())
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestPredictionRepository_InsertTimeline_CountsNewRows(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPredictionRepository(dbx)

	// First insert writes, second conflicts, third writes.
	dbx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil).Once()
	dbx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 0"), nil).Once()
	dbx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil).Once()

	tl := &types.Timeline{
		Location: testLoc,
		Entries: []types.TimelineEntry{
			{DataType: types.DataHistorical, Prediction: testPrediction()},
			{DataType: types.DataCurrent, Prediction: testPrediction()},
			{DataType: types.DataForecast, Prediction: testPrediction()},
		},
	}

	written, err := repo.InsertTimeline(context.Background(), tl)
	require.NoError(t, err)
	assert.Equal(t, 2, written)
	dbx.AssertExpectations(t)
}

func TestPredictionRepository_ListByLocation(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPredictionRepository(dbx)

	sunset := time.Date(2026, 8, 30, 19, 42, 0, 0, time.UTC)
	created := time.Date(2026, 8, 30, 20, 0, 0, 0, time.UTC)

	rows := newMockRows([][]any{
		{int64(1), created, 37.3394, -121.895, sunset, "current",
			50.0, 10.0, 30.0, 40.0, 60.0, 10000.0, 0.5, 2.0, 15.0, 40.0, 0.3,
			96, "Amazing"},
	})

	dbx.On("Query", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "ORDER BY p.sunset_time DESC")
	}), mock.Anything).Return(rows, nil)

	out, err := repo.ListByLocation(context.Background(), 37.3394, -121.895, 10)
	require.NoError(t, err)
	require.Len(t, out, 1)

	sp := out[0]
	assert.Equal(t, int64(1), sp.ID)
	assert.Equal(t, types.DataCurrent, sp.DataType)
	assert.Equal(t, 96, sp.Prediction.Score)
	assert.Equal(t, types.RatingAmazing, sp.Prediction.Rating)
	assert.Equal(t, 15.0, sp.Prediction.Factors.PM25)
	assert.Equal(t, sunset, sp.Prediction.SunsetTime)
}

func TestPredictionRepository_ListByLocation_QueryError(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPredictionRepository(dbx)

	dbx.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(nil, errors.New("timeout"))

	_, err := repo.ListByLocation(context.Background(), 1, 2, 10)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestPredictionRepository_EnsureSchema(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPredictionRepository(dbx)

	dbx.On("Exec", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "CREATE TABLE IF NOT EXISTS predictions")
	}), mock.Anything).Return(pgconn.NewCommandTag("CREATE TABLE"), nil)

	require.NoError(t, repo.EnsureSchema(context.Background()))
	dbx.AssertExpectations(t)
}
