package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowAPIKeyGuide writes instructions for creating a metadata API key
func ShowAPIKeyGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "METADATA API KEY")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The key is optional. Scraping works without it; the key is only")
	fmt.Fprintln(w, "kept for metadata lookups.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Open https://console.cloud.google.com/apis/credentials")
	fmt.Fprintln(w, "2. Create or pick a project and enable the YouTube Data API v3")
	fmt.Fprintln(w, "3. Create credentials -> API key, then restrict it to that API")
	fmt.Fprintln(w, "4. Paste the key at the prompt below")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Environment variables %s are read as well.\n", strings.Join(EnvVars(DefaultKeyName), " / "))
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
