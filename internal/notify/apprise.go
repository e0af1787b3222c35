// internal/notify/apprise.go
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"stagehand/internal/types"
	"stagehand/pkg/utils"
)

type AppriseClient struct {
	url        string
	httpClient *http.Client
	logger     *logrus.Logger
}

// Types de notification
const (
	NotificationInfo    = "info"
	NotificationSuccess = "success"
	NotificationError   = "error"
)

type Notification struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Type  string   `json:"type"`
	Tags  []string `json:"tags,omitempty"`
}

func NewAppriseClient(appriseURL string, logger *logrus.Logger) (*AppriseClient, error) {
	if logger == nil {
		logger = logrus.New()
	}

	// Convertir apprise:// en http:// si nécessaire
	url := appriseURL
	if strings.HasPrefix(url, "apprise://") {
		url = "http://" + strings.TrimPrefix(url, "apprise://")
		logger.Debugf("Converted Apprise URL from %s to %s", appriseURL, url)
	}

	return &AppriseClient{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}, nil
}

func (a *AppriseClient) send(notification Notification) error {
	jsonData, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	resp, err := a.httpClient.Post(a.url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("notification failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

func (a *AppriseClient) SendNotification(title, message string, tags []string) error {
	return a.send(Notification{
		Title: title,
		Body:  message,
		Type:  NotificationInfo,
		Tags:  tags,
	})
}

// NotifyRunCompleted signale la fin d'un run (timeout compris: un run
// arrêté par le timeout est un run qui est allé au bout de son budget)
func (a *AppriseClient) NotifyRunCompleted(report *types.RunReport) error {
	msg := fmt.Sprintf("Scenario run finished (%s):\nScene: %s\nDuration: %s",
		report.Status(), report.Scene, report.Duration().Round(time.Second))
	if report.ContainerStarted {
		msg += fmt.Sprintf("\nSidecar: %s", utils.ShortenID(report.ContainerID))
	}

	return a.send(Notification{
		Title: "Scenario Run Finished",
		Body:  msg,
		Type:  NotificationSuccess,
		Tags:  []string{"success", "run"},
	})
}

// NotifyRunFailed signale l'échec d'un run
func (a *AppriseClient) NotifyRunFailed(scene string, err error) error {
	msg := fmt.Sprintf("Scenario run failed:\nScene: %s\nError: %v", scene, err)

	return a.send(Notification{
		Title: "Scenario Run Failed",
		Body:  msg,
		Type:  NotificationError,
		Tags:  []string{"error", "run"},
	})
}

func (a *AppriseClient) Close() error {
	// Pas besoin de close pour le client HTTP
	return nil
}
