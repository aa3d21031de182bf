package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripledger/internal/core"
)

func jsonRequest(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/trips", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	return r
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"name":"Rome"}`, ""},
		{"empty", ``, "request body is empty"},
		{"syntax", `{"name":}`, "malformed JSON"},
		{"unknown field", `{"nom":"Rome"}`, `unknown field "nom"`},
		{"wrong type", `{"name":true}`, `field "name" has the wrong type`},
		{"trailing object", `{"name":"a"}{"name":"b"}`, "single JSON object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst tripPayload
			err := decodeJSON(httptest.NewRecorder(), jsonRequest(tt.body), &dst)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "Rome", dst.Name)
				return
			}
			var bad *badRequestError
			require.True(t, errors.As(err, &bad), "got %v", err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDecodeJSONContentType(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/trips", strings.NewReader("name=Rome"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	err := decodeJSON(httptest.NewRecorder(), r, &tripPayload{})
	assert.ErrorContains(t, err, "application/json")
}

func TestDecodeJSONTooLarge(t *testing.T) {
	body := `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	err := decodeJSON(httptest.NewRecorder(), jsonRequest(body), &tripPayload{})
	assert.ErrorContains(t, err, "too large")
}

func TestAmountUnmarshal(t *testing.T) {
	tests := []struct {
		body string
		want int64
	}{
		{`{"amount":"12.34"}`, 1234},
		{`{"amount":"12,345"}`, 1235},
		{`{"amount":12.5}`, 1250},
		{`{"amount":0}`, 0},
	}
	for _, tt := range tests {
		var p expensePayload
		require.NoError(t, decodeJSON(httptest.NewRecorder(), jsonRequest(tt.body), &p), tt.body)
		m, err := p.Amount.money()
		require.NoError(t, err, tt.body)
		assert.Equal(t, tt.want, m.Cents, tt.body)
	}

	var p expensePayload
	require.NoError(t, decodeJSON(httptest.NewRecorder(), jsonRequest(`{"amount":null}`), &p))
	_, err := p.Amount.money()
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestTripPayloadInput(t *testing.T) {
	p := tripPayload{
		Name:        " Kyoto\x00 ",
		Destination: "Japan",
		StartDate:   "2024-04-01",
		EndDate:     "2024-04-08",
		TimeZone:    "Asia/Tokyo",
	}
	in, err := p.input(time.UTC)
	require.NoError(t, err)

	assert.Equal(t, "Kyoto", in.Name)
	tokyo, _ := time.LoadLocation("Asia/Tokyo")
	assert.True(t, in.StartDate.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, tokyo)))
	assert.Nil(t, in.Budget)

	budget := amount("1500")
	p.Budget = &budget
	in, err = p.input(time.UTC)
	require.NoError(t, err)
	require.NotNil(t, in.Budget)
	assert.Equal(t, int64(150000), in.Budget.Cents)

	p.TimeZone = "Nowhere/Special"
	_, err = p.input(time.UTC)
	assert.ErrorIs(t, err, core.ErrInvalidTimeZone)
}

func TestExpensePayloadInput(t *testing.T) {
	lat, lng := 35.0, 135.7
	p := expensePayload{
		Amount:   "8.20",
		Category: "DRINKS",
		Date:     "2024-04-02",
		Location: &locationPayload{Latitude: &lat, Longitude: &lng, Name: "Gion"},
		Notes:    "  matcha  ",
	}
	tokyo, _ := time.LoadLocation("Asia/Tokyo")
	in, err := p.input(tokyo)
	require.NoError(t, err)

	assert.Equal(t, int64(820), in.Amount.Cents)
	assert.Equal(t, core.CategoryDrinks, in.Category)
	assert.Equal(t, "2024-04-02", core.DayKey(in.Date, tokyo))
	assert.Equal(t, "matcha", in.Notes)
	require.NotNil(t, in.Location)
	assert.Equal(t, "Gion", in.Location.Name)

	p.Date = "2024-04-02T23:30:00+09:00"
	in, err = p.input(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2024-04-02", core.DayKey(in.Date, tokyo))

	p.Category = "souvenirs"
	_, err = p.input(tokyo)
	assert.ErrorIs(t, err, core.ErrInvalidCategory)
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "a\tb\nc", sanitizeInput("  a\tb\nc\x07  "))
	assert.Equal(t, "", sanitizeInput(" \x01 "))
}
