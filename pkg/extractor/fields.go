package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"shortscraper/pkg/models"
	"shortscraper/pkg/textfix"
)

// Selectors for the regions of a rendered short
const (
	MarkerSelector      = "ytd-reel-video-renderer"
	PanelSelector       = "div#shorts-panel-container div#anchored-panel ytd-engagement-panel-section-list-renderer"
	ExpandSelector      = "div#expanded"
	headerSelector      = "ytd-video-description-header-renderer"
	bodySelector        = "ytd-expandable-video-description-body-renderer"
	metapanelSelector   = "div#metapanel yt-reel-metapanel-view-model"
	expandedDescription = "div#expanded yt-formatted-string"
	snippetDescription  = "div#snippet span#snippet-text"
	captionSelector     = "yt-shorts-video-title-view-model h2 span"
)

// page holds the regions every resolver works from. A region that is not on
// the page is an empty selection, so resolvers never see nil.
type page struct {
	doc       *goquery.Document
	renderer  *goquery.Selection
	panel     *goquery.Selection
	header    *goquery.Selection
	body      *goquery.Selection
	metapanel *goquery.Selection

	// expanded is set when the description expander was clicked
	expanded bool
}

func newPage(doc *goquery.Document, panel *goquery.Selection, expanded bool) *page {
	return &page{
		doc:       doc,
		renderer:  doc.Find(MarkerSelector).First(),
		panel:     panel,
		header:    region(doc, panel, headerSelector),
		body:      region(doc, panel, bodySelector),
		metapanel: doc.Find(metapanelSelector).First(),
		expanded:  expanded,
	}
}

// region prefers a match inside the description panel and falls back to
// the whole document, since the panel markup is not always nested.
func region(doc *goquery.Document, panel *goquery.Selection, selector string) *goquery.Selection {
	if sel := panel.Find(selector).First(); sel.Length() > 0 {
		return sel
	}
	return doc.Find(selector).First()
}

func (p *page) caption() *goquery.Selection {
	return p.metapanel.Find(captionSelector).First()
}

func (p *page) description() *goquery.Selection {
	if p.expanded {
		if sel := p.body.Find(expandedDescription).First(); sel.Length() > 0 {
			return sel
		}
	}
	return p.body.Find(snippetDescription).First()
}

// field resolves one string column of the item
type field struct {
	Name    string
	Default string
	Resolve func(p *page) (string, bool)
	Assign  func(item *models.ScrapedItem, value string)
}

// tagField resolves one hashtag list
type tagField struct {
	Name    string
	Resolve func(p *page) []string
	Assign  func(item *models.ScrapedItem, tags []string)
}

var fields = []field{
	{
		Name:    "views",
		Default: models.ZeroCount,
		Resolve: func(p *page) (string, bool) {
			return text(p.header.Find("view-count-factoid-renderer span.ytwFactoidRendererValue span"))
		},
		Assign: func(item *models.ScrapedItem, v string) { item.RawViewCount = v },
	},
	{
		Name:    "likes",
		Default: models.ZeroCount,
		Resolve: func(p *page) (string, bool) {
			return attr(p.header.Find("factoid-renderer").Eq(0), "aria-label")
		},
		Assign: func(item *models.ScrapedItem, v string) { item.LikesDisplay = v },
	},
	{
		Name:    "upload_date",
		Default: models.NotAvailable,
		Resolve: func(p *page) (string, bool) {
			return attr(p.header.Find("factoid-renderer").Eq(2), "aria-label")
		},
		Assign: func(item *models.ScrapedItem, v string) { item.UploadDateDisplay = v },
	},
	{
		Name:    "description",
		Default: models.DescriptionMissing,
		Resolve: func(p *page) (string, bool) {
			return text(p.description())
		},
		Assign: func(item *models.ScrapedItem, v string) { item.Description = v },
	},
	{
		Name:    "caption",
		Default: models.CaptionMissing,
		Resolve: func(p *page) (string, bool) {
			return text(p.caption())
		},
		Assign: func(item *models.ScrapedItem, v string) { item.Caption = v },
	},
	{
		Name:    "keywords",
		Default: models.NotAvailable,
		Resolve: func(p *page) (string, bool) {
			return text(p.metapanel.Find("yt-shorts-suggested-action-view-model div.ytShortsSuggestedActionViewModelStaticHostPrimaryText span"))
		},
		Assign: func(item *models.ScrapedItem, v string) { item.ExtractedKeywords = v },
	},
	{
		Name:    "sound",
		Default: models.NotAvailable,
		Resolve: func(p *page) (string, bool) {
			return text(p.metapanel.Find("div.ytReelSoundMetadataViewModelMarqueeContainer span span span"))
		},
		Assign: func(item *models.ScrapedItem, v string) { item.SoundName = v },
	},
	{
		Name:    "channel",
		Default: models.ChannelMissing,
		Resolve: func(p *page) (string, bool) {
			return text(p.renderer.Find("yt-reel-channel-bar-view-model span a"))
		},
		Assign: func(item *models.ScrapedItem, v string) { item.ChannelName = v },
	},
	{
		Name:    "comments",
		Default: models.ZeroCount,
		Resolve: func(p *page) (string, bool) {
			return attr(p.renderer.Find("div#comments-button button"), "aria-label")
		},
		Assign: func(item *models.ScrapedItem, v string) { item.CommentsDisplay = v },
	},
	{
		Name:    "remix",
		Default: models.ZeroCount,
		Resolve: func(p *page) (string, bool) {
			return attr(p.renderer.Find("div#remix-button button"), "aria-label")
		},
		Assign: func(item *models.ScrapedItem, v string) { item.RemixDisplay = v },
	},
}

var tagFields = []tagField{
	{
		Name: "caption_hashtags",
		Resolve: func(p *page) []string {
			return hashtags(p.caption().Find("a.yt-core-attributed-string__link"))
		},
		Assign: func(item *models.ScrapedItem, tags []string) { item.CaptionHashtags = tags },
	},
	{
		Name: "description_hashtags",
		Resolve: func(p *page) []string {
			return hashtags(p.description().Find("a"))
		},
		Assign: func(item *models.ScrapedItem, tags []string) { item.DescriptionHashtags = tags },
	},
}

func text(sel *goquery.Selection) (string, bool) {
	sel = sel.First()
	if sel.Length() == 0 {
		return "", false
	}
	v := textfix.CollapseSpace(sel.Text())
	return v, v != ""
}

func attr(sel *goquery.Selection, name string) (string, bool) {
	v, ok := sel.First().Attr(name)
	if !ok {
		return "", false
	}
	v = textfix.CollapseSpace(v)
	return v, v != ""
}

func hashtags(sel *goquery.Selection) []string {
	tags := []string{}
	sel.Each(func(_ int, a *goquery.Selection) {
		tag := textfix.CollapseSpace(a.Text())
		if strings.HasPrefix(tag, "#") {
			tags = append(tags, tag)
		}
	})
	return tags
}
