package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photonics-data/femtoctl/internal/db"
	"github.com/photonics-data/femtoctl/internal/testutil"
	"github.com/photonics-data/femtoctl/lasers"
)

// fakeLaser records calls and plays back configured outcomes.
type fakeLaser struct {
	controlOn  bool
	emissionOn bool

	queryErr  error
	mutateErr error

	calls []string
}

func (f *fakeLaser) IsOn() (bool, error)        { return f.emissionOn, f.queryErr }
func (f *fakeLaser) IsControlOn() (bool, error) { return f.controlOn, f.queryErr }

func (f *fakeLaser) TurnOn() error {
	f.calls = append(f.calls, "TurnOn")
	if f.mutateErr == nil {
		f.emissionOn = true
	}
	return f.mutateErr
}

func (f *fakeLaser) TurnOff() error {
	f.calls = append(f.calls, "TurnOff")
	if f.mutateErr == nil {
		f.emissionOn = false
	}
	return f.mutateErr
}

func (f *fakeLaser) SetControl(on bool) error {
	f.calls = append(f.calls, "SetControl")
	if f.mutateErr == nil {
		f.controlOn = on
	}
	return f.mutateErr
}

func (f *fakeLaser) Close() error { return nil }

func TestStatus(t *testing.T) {
	laser := &fakeLaser{controlOn: true, emissionOn: false}
	e := NewServer(laser).Echo()

	rec := testutil.NewTestRecorder()
	e.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/status", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	var status Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.ControlOn)
	assert.False(t, status.EmissionOn)
}

func TestStatusTransportError(t *testing.T) {
	laser := &fakeLaser{queryErr: errors.New("read interrupted")}
	e := NewServer(laser).Echo()

	rec := testutil.NewTestRecorder()
	e.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/status", ""))

	testutil.AssertStatusCode(t, rec.Code, http.StatusInternalServerError)
}

func TestEmissionOnOff(t *testing.T) {
	laser := &fakeLaser{controlOn: true}
	e := NewServer(laser).Echo()

	rec := testutil.NewTestRecorder()
	e.ServeHTTP(rec, testutil.NewTestRequest(http.MethodPost, "/api/emission", `{"on":true}`))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, laser.emissionOn)

	rec = testutil.NewTestRecorder()
	e.ServeHTTP(rec, testutil.NewTestRequest(http.MethodPost, "/api/emission", `{"on":false}`))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, laser.emissionOn)

	assert.Equal(t, []string{"TurnOn", "TurnOff"}, laser.calls)
}

func TestEmissionDeviceError(t *testing.T) {
	laser := &fakeLaser{
		mutateErr: &lasers.DeviceError{Command: "(param-set! laser:en #t)", Message: "7: hardware input control disabled"},
	}
	e := NewServer(laser).Echo()

	rec := testutil.NewTestRecorder()
	e.ServeHTTP(rec, testutil.NewTestRequest(http.MethodPost, "/api/emission", `{"on":true}`))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "7: hardware input control disabled", body["device_error"])
}

func TestEmissionTransportError(t *testing.T) {
	laser := &fakeLaser{mutateErr: errors.New("bus gone")}
	e := NewServer(laser).Echo()

	rec := testutil.NewTestRecorder()
	e.ServeHTTP(rec, testutil.NewTestRequest(http.MethodPost, "/api/emission", `{"on":true}`))

	testutil.AssertStatusCode(t, rec.Code, http.StatusInternalServerError)
}

func TestEmissionBadBody(t *testing.T) {
	laser := &fakeLaser{}
	e := NewServer(laser).Echo()

	rec := testutil.NewTestRecorder()
	e.ServeHTTP(rec, testutil.NewTestRequest(http.MethodPost, "/api/emission", `{"on":"sure"}`))

	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
	assert.Empty(t, laser.calls)
}

func TestControl(t *testing.T) {
	laser := &fakeLaser{}
	e := NewServer(laser).Echo()

	rec := testutil.NewTestRecorder()
	e.ServeHTTP(rec, testutil.NewTestRequest(http.MethodPost, "/api/control", `{"on":true}`))

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, laser.controlOn)
	assert.Equal(t, []string{"SetControl"}, laser.calls)
}

func TestNotifyFiredAfterMutation(t *testing.T) {
	laser := &fakeLaser{controlOn: true}
	var notified []Status
	e := NewServer(laser, WithNotify(func(s Status) { notified = append(notified, s) })).Echo()

	rec := testutil.NewTestRecorder()
	e.ServeHTTP(rec, testutil.NewTestRequest(http.MethodPost, "/api/emission", `{"on":true}`))
	require.Equal(t, http.StatusNoContent, rec.Code)

	require.Len(t, notified, 1)
	assert.True(t, notified[0].EmissionOn)
	assert.True(t, notified[0].ControlOn)
}

func TestNotifyNotFiredOnDeviceError(t *testing.T) {
	laser := &fakeLaser{mutateErr: &lasers.DeviceError{Message: "5: interlock open"}}
	notified := 0
	e := NewServer(laser, WithNotify(func(Status) { notified++ })).Echo()

	rec := testutil.NewTestRecorder()
	e.ServeHTTP(rec, testutil.NewTestRequest(http.MethodPost, "/api/emission", `{"on":true}`))

	testutil.AssertStatusCode(t, rec.Code, http.StatusBadGateway)
	assert.Zero(t, notified)
}

func TestExchangesWithoutStore(t *testing.T) {
	e := NewServer(&fakeLaser{}).Echo()

	rec := testutil.NewTestRecorder()
	e.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/exchanges", ""))

	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestExchangesFromStore(t *testing.T) {
	store, err := db.Open(filepath.Join(t.TempDir(), "transcript.db"))
	require.NoError(t, err)
	defer store.Close()

	sessionID, err := store.BeginSession("simulator")
	require.NoError(t, err)
	require.NoError(t, store.RecordExchange(sessionID, "(param-ref laser:en)", "#t", ""))

	e := NewServer(&fakeLaser{}, WithStore(store, sessionID)).Echo()

	rec := testutil.NewTestRecorder()
	e.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/exchanges?limit=5", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	var exchanges []db.Exchange
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exchanges))
	require.Len(t, exchanges, 1)
	assert.Equal(t, "(param-ref laser:en)", exchanges[0].Command)
	assert.Equal(t, "#t", exchanges[0].Response)
}

func TestExchangesBadLimit(t *testing.T) {
	store, err := db.Open(filepath.Join(t.TempDir(), "transcript.db"))
	require.NoError(t, err)
	defer store.Close()

	e := NewServer(&fakeLaser{}, WithStore(store, "s")).Echo()

	rec := testutil.NewTestRecorder()
	e.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/exchanges?limit=-1", ""))

	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}
