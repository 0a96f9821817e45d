package google

import (
	"context"
	"fmt"
	"strconv"

	"plant-monitor-service/internal/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
)

// FirebaseService pushes alert transitions to an FCM topic the operator
// devices subscribe to.
type FirebaseService struct {
	client *messaging.Client
	topic  string
}

// NewFirebaseService reuses the app already opened for Firestore.
func NewFirebaseService(ctx context.Context, app *firebase.App, topic string) (*FirebaseService, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}
	return &FirebaseService{client: client, topic: topic}, nil
}

// Notify implements services.AlertNotifier.
func (f *FirebaseService) Notify(ctx context.Context, evt models.AlertEvent) error {
	if _, err := f.client.Send(ctx, AlertMessage(evt, f.topic)); err != nil {
		return fmt.Errorf("error sending alert push: %w", err)
	}
	return nil
}

func AlertMessage(evt models.AlertEvent, topic string) *messaging.Message {
	title, body := AlertText(evt)
	return &messaging.Message{
		Topic: topic,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: map[string]string{
			"id":       evt.ID,
			"kind":     string(evt.Kind),
			"metric":   string(evt.Metric),
			"value":    strconv.FormatFloat(evt.Value, 'f', -1, 64),
			"expected": evt.Expected,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}
}

// AlertText renders the human readable title and body of an alert.
func AlertText(evt models.AlertEvent) (string, string) {
	value := strconv.FormatFloat(evt.Value, 'f', -1, 64)
	if evt.Kind == models.AlertCleared {
		return fmt.Sprintf("%s back to normal", metricLabel(evt.Metric)),
			fmt.Sprintf("%s is %s again within %s.", metricLabel(evt.Metric), value, evt.Expected)
	}
	return fmt.Sprintf("%s alert", metricLabel(evt.Metric)),
		fmt.Sprintf("%s reads %s, expected %s.", metricLabel(evt.Metric), value, evt.Expected)
}

func metricLabel(m models.Metric) string {
	switch m {
	case models.MetricTemperature:
		return "Temperature"
	case models.MetricHumidity:
		return "Humidity"
	case models.MetricSoilMoisture:
		return "Soil moisture"
	case models.MetricNitrogen:
		return "Nitrogen"
	case models.MetricPhosphorus:
		return "Phosphorus"
	case models.MetricPotassium:
		return "Potassium"
	}
	return string(m)
}
