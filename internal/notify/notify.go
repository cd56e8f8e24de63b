package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"idealista-watcher/internal/models"
)

// Manager fans a new-listing notification out to every enabled channel.
// Channel failures are logged and swallowed: a broken webhook must never
// abort a watch run.
type Manager struct {
	channels []string
	client   *http.Client

	telegramBotToken string
	telegramChatID   string
	slackWebhookURL  string
}

type Config struct {
	Channels         []string
	TelegramBotToken string
	TelegramChatID   string
	SlackWebhookURL  string
}

func NewManager(cfg Config) *Manager {
	return &Manager{
		channels:         cfg.Channels,
		client:           &http.Client{Timeout: 15 * time.Second},
		telegramBotToken: cfg.TelegramBotToken,
		telegramChatID:   cfg.TelegramChatID,
		slackWebhookURL:  cfg.SlackWebhookURL,
	}
}

// Notify sends the listing over all enabled channels, fire-and-forget.
func (m *Manager) Notify(l *models.Listing) {
	message := formatMessage(l)

	for _, channel := range m.channels {
		var err error
		switch channel {
		case "console":
			m.sendConsole(message)
		case "telegram":
			err = m.sendTelegram(message, l)
		case "slack":
			err = m.sendSlack(l)
		default:
			log.Printf("[Notify] Unknown channel %q, skipping", channel)
		}
		if err != nil {
			log.Printf("[Notify] Error sending via %s: %v", channel, err)
		}
	}
}

func formatMessage(l *models.Listing) string {
	var b strings.Builder
	b.WriteString("NUEVA PROPIEDAD DISPONIBLE\n\n")
	fmt.Fprintf(&b, "Ubicación: %s\n", l.Address)
	if l.Zone != "" {
		fmt.Fprintf(&b, "Zona: %s\n", l.Zone)
	}
	fmt.Fprintf(&b, "Precio: %d €\n", l.Price)
	if l.Area > 0 {
		fmt.Fprintf(&b, "Tamaño: %d m²\n", l.Area)
		fmt.Fprintf(&b, "Precio/m²: %d €/m²\n", l.PricePerArea)
	}
	fmt.Fprintf(&b, "Habitaciones: %d\n", l.Rooms)
	fmt.Fprintf(&b, "Baños: %d\n", l.Bathrooms)
	if l.Floor != "" {
		fmt.Fprintf(&b, "Planta: %s\n", l.Floor)
	}
	fmt.Fprintf(&b, "Ascensor: %s\n", siNo(l.Elevator))
	fmt.Fprintf(&b, "Terraza: %s\n", siNo(l.Terrace))
	fmt.Fprintf(&b, "\nVer más: %s\n", l.URL)
	return b.String()
}

func siNo(v bool) string {
	if v {
		return "Sí"
	}
	return "No"
}

func (m *Manager) sendConsole(message string) {
	log.Printf("[Notify] %s\n%s\n%s\n%s", "new listing", strings.Repeat("=", 60), message, strings.Repeat("=", 60))
}

func (m *Manager) sendTelegram(message string, l *models.Listing) error {
	if m.telegramBotToken == "" || m.telegramChatID == "" {
		return fmt.Errorf("telegram configuration incomplete")
	}

	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", m.telegramBotToken)
	form := url.Values{
		"chat_id":                  {m.telegramChatID},
		"text":                     {message},
		"disable_web_page_preview": {"false"},
	}

	resp, err := m.client.PostForm(endpoint, form)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram sendMessage: status %d", resp.StatusCode)
	}

	// Best effort: attach the first photo when there is one
	if len(l.Images) > 0 {
		if err := m.sendTelegramPhoto(l.Images[0]); err != nil {
			log.Printf("[Notify] Telegram photo failed: %v", err)
		}
	}
	return nil
}

func (m *Manager) sendTelegramPhoto(photoURL string) error {
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendPhoto", m.telegramBotToken)
	form := url.Values{
		"chat_id": {m.telegramChatID},
		"photo":   {photoURL},
	}
	resp, err := m.client.PostForm(endpoint, form)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram sendPhoto: status %d", resp.StatusCode)
	}
	return nil
}

func (m *Manager) sendSlack(l *models.Listing) error {
	if m.slackWebhookURL == "" {
		return fmt.Errorf("slack webhook not configured")
	}

	payload := map[string]interface{}{
		"blocks": []map[string]interface{}{
			{
				"type": "header",
				"text": map[string]string{"type": "plain_text", "text": "Nueva propiedad disponible"},
			},
			{
				"type": "section",
				"text": map[string]string{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*%s*\n%s\n%d € · %d m² · %d hab · %d baños\n<%s|Ver anuncio>",
						l.Title, l.Address, l.Price, l.Area, l.Rooms, l.Bathrooms, l.URL),
				},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := m.client.Post(m.slackWebhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook: status %d", resp.StatusCode)
	}
	return nil
}
