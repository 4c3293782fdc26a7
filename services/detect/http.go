package detect

import (
	"sort"
	"strings"

	"github.com/clearwatch/clearwatch/models"
)

// evaluateHTTP checks for a cleartext Basic Authorization header first, then
// scans the request body for credential-shaped keys. Header fields arrive
// either as "Name: value" show-strings or as direct named sub-fields.
func (e *Engine) evaluateHTTP(f *models.NetworkFrame) *models.Event {
	layer := f.Layer("http")
	headers := parseHeaders(layer.FieldList("http"))
	host := headers["Host"]

	auth := headers["Authorization"]
	if auth == "" {
		auth = headers["authorization"]
	}
	if strings.HasPrefix(auth, "Basic ") {
		event := models.NewHTTPBasicAuth(f.Time, f.Tuple(), host)
		return &event
	}

	body := strings.Join(layer.Strings("http.file_data"), "\n")
	if body == "" || len(body) > e.maxBodyBytes {
		return nil
	}
	keys := e.scanBodyForCredentials(body)
	if len(keys) == 0 {
		return nil
	}
	event := models.NewHTTPCredentialKey(f.Time, f.Tuple(), host, keys, body)
	return &event
}

// parseHeaders folds the dissector's HTTP field list into a header map.
func parseHeaders(fields []models.FieldEntry) map[string]string {
	headers := make(map[string]string)
	for _, field := range fields {
		if field.Show == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(field.Name), "http/") {
			// 'Host: example.com' show-string under a request/status line
			if idx := strings.Index(field.Show, ":"); idx >= 0 {
				name := strings.TrimSpace(field.Show[:idx])
				value := strings.TrimSpace(field.Show[idx+1:])
				if name != "" {
					headers[name] = value
				}
			}
			continue
		}
		// Direct field like http.host
		parts := strings.Split(field.Name, ".")
		fieldName := parts[len(parts)-1]
		switch fieldName {
		case "host", "authorization", "user_agent", "content_type":
			headers[titleHeader(fieldName)] = field.Show
		}
	}
	return headers
}

// titleHeader turns a field suffix like user_agent into User-Agent.
func titleHeader(name string) string {
	words := strings.Split(strings.ReplaceAll(name, "_", "-"), "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, "-")
}

// scanBodyForCredentials matches form-style key=value pairs against the
// credential key set, then looks for quoted keys in JSON-shaped bodies.
// Returned keys are unique and sorted.
func (e *Engine) scanBodyForCredentials(body string) []string {
	seen := make(map[string]struct{})

	for _, part := range strings.Split(body, "&") {
		idx := strings.Index(part, "=")
		if idx < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(part[:idx]))
		value := strings.TrimSpace(part[idx+1:])
		if _, ok := e.credentialKeys[key]; ok && value != "" {
			seen[key] = struct{}{}
		}
	}

	for key := range e.credentialKeys {
		if strings.Contains(body, `"`+key+`"`) {
			seen[key] = struct{}{}
		}
	}

	found := make([]string, 0, len(seen))
	for key := range seen {
		found = append(found, key)
	}
	sort.Strings(found)
	return found
}
