// Package maskedurl builds and parses the stable file URLs handed to the
// assistant in place of short-lived transport download links.
package maskedurl

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultRoot is the public root used when no override is configured.
const DefaultRoot = "https://bubby.app"

// Build returns the masked URL for a file in a channel, e.g.
// https://bubby.app/v1/c/<channel>/f/<file>/masked.
func Build(root, channelID, fileID string) string {
	if root == "" {
		root = DefaultRoot
	}
	return fmt.Sprintf("%s/v1/c/%s/f/%s/masked",
		strings.TrimRight(root, "/"),
		url.PathEscape(channelID),
		url.PathEscape(fileID),
	)
}

// Extract returns the file id embedded in a masked URL, verifying that the
// URL belongs to the given channel. The second result is false when the URL
// is not a masked URL or references another channel.
func Extract(masked, channelID string) (string, bool) {
	u, err := url.Parse(masked)
	if err != nil {
		return "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 6 {
		return "", false
	}
	if parts[0] != "v1" || parts[1] != "c" || parts[3] != "f" || parts[5] != "masked" {
		return "", false
	}
	channel, err := url.PathUnescape(parts[2])
	if err != nil || channel != channelID {
		return "", false
	}
	fileID, err := url.PathUnescape(parts[4])
	if err != nil || fileID == "" {
		return "", false
	}
	return fileID, true
}
