package itp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"raritp-backend/lib/telemetry"
	"raritp-backend/lib/timezone"

	"github.com/stretchr/testify/require"
)

func TestReadApi(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/itp")
	defer cleanup()

	service, err := NewService(openTestDB(t), Options{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, service.Store().Upsert(ctx, Record{
		VIN:            "VIN1",
		Status:         "Valid",
		ExpirationDate: timezone.Now().AddDate(0, 0, 10).Format("2006-01-02"),
		LastChecked:    timezone.Now(),
	}))
	require.NoError(t, service.Store().Upsert(ctx, Record{
		VIN:            "VIN2",
		Status:         "Not Found",
		ExpirationDate: "Unknown",
		LastChecked:    timezone.Now(),
	}))

	api := httptest.NewServer(service.Routes())
	defer api.Close()

	t.Run("list", func(t *testing.T) {
		res, err := http.Get(api.URL + "/vehicles")
		require.NoError(t, err)
		defer res.Body.Close()
		require.Equal(t, http.StatusOK, res.StatusCode)

		var records []recordResponse
		require.NoError(t, json.NewDecoder(res.Body).Decode(&records))
		require.Len(t, records, 2)
	})

	t.Run("get valid", func(t *testing.T) {
		res, err := http.Get(api.URL + "/vehicles/VIN1")
		require.NoError(t, err)
		defer res.Body.Close()
		require.Equal(t, http.StatusOK, res.StatusCode)

		var record recordResponse
		require.NoError(t, json.NewDecoder(res.Body).Decode(&record))
		require.Equal(t, "VIN1", record.VIN)
		require.Equal(t, "Valid", record.Status)
		require.NotNil(t, record.DaysLeft)
		require.Equal(t, 10, *record.DaysLeft)
	})

	t.Run("get unknown expiration has no days left", func(t *testing.T) {
		res, err := http.Get(api.URL + "/vehicles/VIN2")
		require.NoError(t, err)
		defer res.Body.Close()

		var record recordResponse
		require.NoError(t, json.NewDecoder(res.Body).Decode(&record))
		require.Nil(t, record.DaysLeft)
	})

	t.Run("get missing", func(t *testing.T) {
		res, err := http.Get(api.URL + "/vehicles/GHOST")
		require.NoError(t, err)
		defer res.Body.Close()
		require.Equal(t, http.StatusNotFound, res.StatusCode)
	})

	t.Run("refresh unregistered vin fails", func(t *testing.T) {
		res, err := http.Post(fmt.Sprintf("%s/vehicles/GHOST/refresh", api.URL), "", nil)
		require.NoError(t, err)
		defer res.Body.Close()
		require.Equal(t, http.StatusBadGateway, res.StatusCode)
	})
}
