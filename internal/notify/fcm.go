package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/example/ride-dispatch/internal/models"
)

// FCMNotifier posts assignments to an FCM HTTPv1 endpoint so drivers
// without a live websocket still get a push.
type FCMNotifier struct {
	Endpoint string
	Key      string
	Client   *http.Client
}

func NewFCMNotifier(endpoint, key string) *FCMNotifier {
	return &FCMNotifier{Endpoint: endpoint, Key: key, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (f *FCMNotifier) Assigned(rideID string, d models.Driver) error {
	body := map[string]interface{}{
		"message": map[string]interface{}{
			"data": map[string]interface{}{
				"ride_id":   rideID,
				"driver_id": d.ID,
				"pickup":    d.Loc,
			},
		},
	}
	b, _ := json.Marshal(body)
	req, err := http.NewRequest(http.MethodPost, f.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if f.Key != "" {
		req.Header.Set("Authorization", "Bearer "+f.Key)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// Fallback tries a websocket session first and falls back to push when
// the driver is not connected.
type Fallback struct {
	WS   *WSRegistry
	Push *FCMNotifier
}

func (fb *Fallback) Assigned(rideID string, d models.Driver) error {
	if fb.WS != nil {
		if err := fb.WS.Assigned(rideID, d); err == nil {
			return nil
		}
	}
	if fb.Push != nil {
		return fb.Push.Assigned(rideID, d)
	}
	return ErrNoSession
}
