package controller

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/envmonitor/envmonitor/internal/evaluator"
	"github.com/envmonitor/envmonitor/internal/model"
)

type fakeStore struct {
	readings     []model.Reading
	alerts       []model.Alert
	delivered    []uint
	readingErr   error
	alertErr     error
	deliveredErr error
}

func (f *fakeStore) SaveReading(r model.Reading) error {
	if f.readingErr != nil {
		return f.readingErr
	}
	f.readings = append(f.readings, r)
	return nil
}

func (f *fakeStore) SaveAlert(a model.Alert) (uint, error) {
	if f.alertErr != nil {
		return 0, f.alertErr
	}
	f.alerts = append(f.alerts, a)
	return uint(len(f.alerts)), nil
}

func (f *fakeStore) MarkAlertDelivered(id uint) error {
	if f.deliveredErr != nil {
		return f.deliveredErr
	}
	f.delivered = append(f.delivered, id)
	return nil
}

type fakeNotifier struct {
	alerts []model.Alert
	err    error
}

func (f *fakeNotifier) Notify(_ context.Context, a model.Alert) error {
	if f.err != nil {
		return f.err
	}
	f.alerts = append(f.alerts, a)
	return nil
}

type fakeMirror struct {
	readings []model.Reading
}

func (f *fakeMirror) WriteReading(r model.Reading) { f.readings = append(f.readings, r) }

var testThresholds = evaluator.Thresholds{TempMax: 30.0, HumidityMin: 40.0}

func newTestService(st Store, n Notifier, m ReadingMirror) *Service {
	return NewService(nil, st, n, m, testThresholds)
}

func TestHandlePayload_NormalReading(t *testing.T) {
	st := &fakeStore{}
	n := &fakeNotifier{}
	svc := newTestService(st, n, nil)

	svc.HandlePayload(context.Background(), []byte(`{"temp": 25.0, "humidity": 60.0, "timestamp": "2026-09-01T10:00:00Z"}`))

	require.Len(t, st.readings, 1)
	require.Equal(t, 25.0, st.readings[0].Temp)
	require.Equal(t, 60.0, st.readings[0].Humidity)
	require.Empty(t, st.alerts)
	require.Empty(t, n.alerts)
}

func TestHandlePayload_ViolatingReading_PersistsAndDelivers(t *testing.T) {
	st := &fakeStore{}
	n := &fakeNotifier{}
	svc := newTestService(st, n, nil)

	svc.HandlePayload(context.Background(), []byte(`{"temp": 35.0, "humidity": 20.0}`))

	require.Len(t, st.readings, 1)
	require.Len(t, st.alerts, 2)
	require.Equal(t, model.AlertHighTemperature, st.alerts[0].Type)
	require.Equal(t, model.AlertLowHumidity, st.alerts[1].Type)
	require.NotEmpty(t, st.alerts[0].Timestamp)

	require.Len(t, n.alerts, 2, "both alerts delivered, in rule order")
	require.Equal(t, model.AlertHighTemperature, n.alerts[0].Type)
	require.Equal(t, model.AlertLowHumidity, n.alerts[1].Type)

	require.Equal(t, []uint{1, 2}, st.delivered)
}

func TestHandlePayload_MalformedJSON_Dropped(t *testing.T) {
	st := &fakeStore{}
	n := &fakeNotifier{}
	svc := newTestService(st, n, nil)

	svc.HandlePayload(context.Background(), []byte(`{not json`))
	svc.HandlePayload(context.Background(), []byte(`"just a string"`))

	require.Empty(t, st.readings)
	require.Empty(t, st.alerts)
	require.Empty(t, n.alerts)
}

func TestHandlePayload_MissingFieldsDefaultToZero(t *testing.T) {
	st := &fakeStore{}
	n := &fakeNotifier{}
	svc := newTestService(st, n, nil)

	// humidity missing -> 0, which violates the humidity rule.
	svc.HandlePayload(context.Background(), []byte(`{"temp": 25.0}`))

	require.Len(t, st.readings, 1)
	require.Equal(t, 0.0, st.readings[0].Humidity)
	require.Len(t, st.alerts, 1)
	require.Equal(t, model.AlertLowHumidity, st.alerts[0].Type)
}

func TestHandlePayload_ReadingWriteFailure_AlertsStillFlow(t *testing.T) {
	st := &fakeStore{readingErr: errors.New("disk full")}
	n := &fakeNotifier{}
	svc := newTestService(st, n, nil)

	svc.HandlePayload(context.Background(), []byte(`{"temp": 35.0, "humidity": 60.0}`))

	require.Empty(t, st.readings)
	require.Len(t, st.alerts, 1, "alert evaluation continues after a failed reading write")
	require.Len(t, n.alerts, 1)
}

func TestHandlePayload_AlertWriteFailure_StillDelivered(t *testing.T) {
	st := &fakeStore{alertErr: errors.New("locked")}
	n := &fakeNotifier{}
	svc := newTestService(st, n, nil)

	svc.HandlePayload(context.Background(), []byte(`{"temp": 35.0, "humidity": 60.0}`))

	require.Empty(t, st.alerts)
	require.Len(t, n.alerts, 1, "delivery attempted regardless of the failed write")
	require.Empty(t, st.delivered, "no delivered flag without a persisted row")
}

func TestHandlePayload_NotifyFailure_NotMarkedDelivered(t *testing.T) {
	st := &fakeStore{}
	n := &fakeNotifier{err: errors.New("connection refused")}
	svc := newTestService(st, n, nil)

	svc.HandlePayload(context.Background(), []byte(`{"temp": 35.0, "humidity": 60.0}`))

	require.Len(t, st.alerts, 1, "alert persisted even when delivery fails")
	require.Empty(t, st.delivered)
}

func TestHandlePayload_MirrorReceivesReading(t *testing.T) {
	st := &fakeStore{}
	m := &fakeMirror{}
	svc := newTestService(st, &fakeNotifier{}, m)

	svc.HandlePayload(context.Background(), []byte(`{"temp": 22.5, "humidity": 55.0}`))

	require.Len(t, m.readings, 1)
	require.Equal(t, 22.5, m.readings[0].Temp)
}
