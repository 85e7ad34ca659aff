package session

import (
	"bytes"
	"html/template"

	"shortscraper/pkg/models"
)

// PageData fills a synthetic short-video page for FakeSession feeds
type PageData struct {
	ID                  string
	Caption             string
	CaptionHashtags     []string
	Description         string
	Snippet             string
	DescriptionHashtags []string
	Channel             string
	Views               string
	Likes               string
	UploadDate          string
	Comments            string
	Remix               string
	Keywords            string
	Sound               string

	// Ad omits the description panel, the way promoted items render
	Ad bool
	// Loading omits the video renderer marker entirely
	Loading bool
}

var pageTemplate = template.Must(template.New("short").Parse(`<html><head><title>{{.Caption}}</title></head><body>
{{if not .Loading}}<ytd-reel-video-renderer>
  <div id="metapanel"><yt-reel-metapanel-view-model>
    <yt-shorts-video-title-view-model><h2><span>{{.Caption}}{{range .CaptionHashtags}} <a class="yt-core-attributed-string__link" href="/hashtag/x">{{.}}</a>{{end}}</span></h2></yt-shorts-video-title-view-model>
    {{if .Keywords}}<yt-shorts-suggested-action-view-model><div class="ytShortsSuggestedActionViewModelStaticHostPrimaryText"><span>{{.Keywords}}</span></div></yt-shorts-suggested-action-view-model>{{end}}
    {{if .Sound}}<div class="ytReelSoundMetadataViewModelMarqueeContainer"><span><span><span>{{.Sound}}</span></span></span></div>{{end}}
  </yt-reel-metapanel-view-model></div>
  {{if .Channel}}<yt-reel-channel-bar-view-model><span><a href="/@channel">{{.Channel}}</a></span></yt-reel-channel-bar-view-model>{{end}}
  <div id="comments-button"><button {{if .Comments}}aria-label="{{.Comments}}"{{end}}>c</button></div>
  <div id="remix-button"><button {{if .Remix}}aria-label="{{.Remix}}"{{end}}>r</button></div>
</ytd-reel-video-renderer>{{end}}
<div id="navigation-button"><button class="yt-spec-button-shape-next" aria-label="Next video">next</button></div>
<div id="shorts-panel-container"><div id="anchored-panel">
  <ytd-engagement-panel-section-list-renderer><div id="content">comments</div></ytd-engagement-panel-section-list-renderer>
  {{if not .Ad}}<ytd-engagement-panel-section-list-renderer><div id="content"><ytd-structured-description-content-renderer>
    <ytd-video-description-header-renderer>
      {{if .Views}}<view-count-factoid-renderer><span class="ytwFactoidRendererValue"><span>{{.Views}}</span></span></view-count-factoid-renderer>{{end}}
      <factoid-renderer {{if .Likes}}aria-label="{{.Likes}}"{{end}}></factoid-renderer>
      <factoid-renderer aria-label="{{.Views}} views"></factoid-renderer>
      <factoid-renderer {{if .UploadDate}}aria-label="{{.UploadDate}}"{{end}}></factoid-renderer>
    </ytd-video-description-header-renderer>
    {{if .Description}}<ytd-expandable-video-description-body-renderer>
      <div id="snippet"><span id="snippet-text">{{.Snippet}}</span></div>
      <div id="expanded"><yt-formatted-string>{{.Description}}{{range .DescriptionHashtags}} <a href="/hashtag/x">{{.}}</a>{{end}}</yt-formatted-string></div>
    </ytd-expandable-video-description-body-renderer>{{end}}
  </ytd-structured-description-content-renderer></div></ytd-engagement-panel-section-list-renderer>{{end}}
</div></div>
</body></html>`))

// Page renders d as a FakePage located at the item's canonical URL
func Page(d PageData) FakePage {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, d); err != nil {
		panic(err)
	}
	return FakePage{URL: models.URLFor(d.ID), HTML: buf.String()}
}

// SamplePage renders a fully populated page for id
func SamplePage(id string) FakePage {
	return Page(PageData{
		ID:                  id,
		Caption:             "Caption for " + id,
		CaptionHashtags:     []string{"#shorts", "#" + id},
		Description:         "Full description of " + id,
		Snippet:             "Full description...",
		DescriptionHashtags: []string{"#fyp"},
		Channel:             "@channel_" + id,
		Views:               "1.2M",
		Likes:               "45K likes",
		UploadDate:          "Mar 3, 2025",
		Comments:            "View 120 comments",
		Remix:               "Remix",
		Keywords:            "Search keywords " + id,
		Sound:               "Original sound - " + id,
	})
}

// Feed renders one SamplePage per id
func Feed(ids ...string) []FakePage {
	pages := make([]FakePage, 0, len(ids))
	for _, id := range ids {
		pages = append(pages, SamplePage(id))
	}
	return pages
}
