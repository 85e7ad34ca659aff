package extractor

import (
	"net/url"
	"strings"
)

// ItemID pulls the video id out of a feed URL. Both the /shorts/<id> form
// and the /watch?v=<id> form are understood.
func ItemID(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}

	if _, rest, ok := strings.Cut(u.Path, "/shorts/"); ok {
		if i := strings.IndexAny(rest, "/?&#"); i >= 0 {
			rest = rest[:i]
		}
		return rest, rest != ""
	}

	if strings.HasSuffix(u.Path, "/watch") {
		id := u.Query().Get("v")
		return id, id != ""
	}

	return "", false
}
