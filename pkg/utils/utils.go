// pkg/utils/utils.go
package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Docker ID helpers
// ----------------

// ShortenID raccourcit un ID de conteneur à sa forme courte (12 caractères)
func ShortenID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// CleanContainerName retire le "/" initial du nom d'un conteneur
func CleanContainerName(name string) string {
	return strings.TrimPrefix(name, "/")
}

// Mapping helpers
// --------------

// ParseMappings convertit des chaînes "source:cible" en map {source: cible}
func ParseMappings(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		src, dst, ok := strings.Cut(pair, ":")
		if !ok || src == "" || dst == "" {
			return nil, fmt.Errorf("invalid mapping %q (expected source:target)", pair)
		}
		m[src] = dst
	}
	return m, nil
}

// ParseKeyValues convertit des chaînes "CLE=valeur" en map {CLE: valeur}
func ParseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid key-value pair %q (expected KEY=value)", pair)
		}
		m[key] = value
	}
	return m, nil
}

// JSON helpers
// -----------

// PrettyJSON retourne une représentation JSON indentée
func PrettyJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("error marshaling JSON: %v", err)
	}
	return string(b)
}

// Retry helpers
// ------------

// RetryOptions définit les options pour la fonction Retry
type RetryOptions struct {
	MaxAttempts int
	Delay       time.Duration
	OnRetry     func(attempt int, err error)
}

// Retry exécute une fonction avec retry
func Retry(ctx context.Context, fn func() error, opts RetryOptions) error {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 3
	}
	if opts.Delay == 0 {
		opts.Delay = time.Second * 5
	}

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := fn(); err == nil {
				return nil
			} else {
				lastErr = err
				if opts.OnRetry != nil {
					opts.OnRetry(attempt, err)
				}
				if attempt < opts.MaxAttempts {
					time.Sleep(opts.Delay)
				}
			}
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", opts.MaxAttempts, lastErr)
}

// ParseTime essaie de parser une chaîne de date avec différents formats
func ParseTime(timeStr string) (time.Time, error) {
	for _, layout := range []string{
		"2006-01-02 15:04:05",
		time.RFC3339, // Format avec T et Z
		"2006-01-02T15:04:05Z07:00",
		time.RFC3339Nano,
	} {
		if t, err := time.Parse(layout, timeStr); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse time: %q", timeStr)
}
