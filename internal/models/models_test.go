package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAlertType(t *testing.T) {
	tests := []struct {
		in   string
		want AlertType
	}{
		{"ambulance", AlertTypeAmbulance},
		{"fire", AlertTypeFire},
		{"fire_engine", AlertTypeFire},
		{" Police ", AlertTypePolice},
	}
	for _, tt := range tests {
		got, err := ParseAlertType(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseAlertType("helicopter")
	assert.Error(t, err)
}

func TestParseAlertStatus_ClosedSet(t *testing.T) {
	for _, st := range AllStatuses {
		got, err := ParseAlertStatus(string(st))
		require.NoError(t, err)
		assert.Equal(t, st, got)
	}
	assert.Len(t, AllStatuses, 7)

	_, err := ParseAlertStatus("picked")
	assert.Error(t, err)
	_, err = ParseAlertStatus("")
	assert.Error(t, err)
}

func TestAlertStatus_ActiveResolved(t *testing.T) {
	assert.True(t, StatusPending.IsActive())
	assert.True(t, StatusEnrouteToHospital.IsActive())
	assert.False(t, StatusCompleted.IsActive())
	assert.True(t, StatusCompleted.IsResolved())
	assert.True(t, StatusRejected.IsResolved())
	assert.False(t, StatusDeleted.IsResolved())
}

func TestGeoPoint_Validate(t *testing.T) {
	assert.NoError(t, GeoPoint{Lat: 17.40, Lng: 78.47}.Validate())
	assert.ErrorIs(t, GeoPoint{Lat: 91, Lng: 0}.Validate(), ErrInvalidCoordinates)
	assert.ErrorIs(t, GeoPoint{Lat: 0, Lng: -181}.Validate(), ErrInvalidCoordinates)
	assert.ErrorIs(t, GeoPoint{Lat: math.NaN(), Lng: 0}.Validate(), ErrInvalidCoordinates)
}

func TestRole(t *testing.T) {
	route, err := RoleFireDriver.HomeRoute()
	require.NoError(t, err)
	assert.Equal(t, "/fire", route)
	assert.Equal(t, AlertTypeAmbulance, RoleAmbulanceDriver.AlertType())
	assert.Equal(t, AlertType(""), RoleAdmin.AlertType())

	_, err = Role("dispatcher").HomeRoute()
	assert.Error(t, err)
}

func TestUser_DisplayName(t *testing.T) {
	assert.Equal(t, "Asha", User{Name: "Asha", Email: "a@x.io"}.DisplayName())
	assert.Equal(t, "Asha Rao", User{FirstName: "Asha", LastName: "Rao"}.DisplayName())
	assert.Equal(t, "a@x.io", User{Email: "a@x.io"}.DisplayName())
	assert.Equal(t, "Unnamed User", User{}.DisplayName())
}
