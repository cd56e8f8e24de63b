package extract

import (
	"fmt"
	"strings"
	"testing"
)

func collectFrom(t *testing.T, html string) []string {
	t.Helper()
	doc, _, err := Normalize(html)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	return CollectImages(html, doc)
}

func TestCollectImagesDedupByPhotoID(t *testing.T) {
	// Same 10-digit photo id served in two sizes: one image.
	html := `<html><body>
		<img src="https://img3.idealista.com/blur/WEB_DETAIL/0/id.pro.es.image.master/1234567890.jpg">
		<img data-src="https://img4.idealista.com/blur/WEB_LISTING/0/id.pro.es.image.master/1234567890.jpg">
		<img src="https://img3.idealista.com/blur/WEB_DETAIL/0/id.pro.es.image.master/0987654321.jpg">
	</body></html>`
	images := collectFrom(t, html)
	if len(images) != 2 {
		t.Fatalf("expected 2 unique images, got %d: %v", len(images), images)
	}
	if !strings.Contains(images[0], "1234567890") {
		t.Fatalf("first discovered photo should win, got %v", images)
	}
}

func TestCollectImagesCap(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, `<img src="https://img3.idealista.com/blur/M/x/%010d.jpg">`, 1000000000+i)
	}
	b.WriteString("</body></html>")
	images := collectFrom(t, b.String())
	if len(images) != 30 {
		t.Fatalf("expected cap of 30, got %d", len(images))
	}
	if !strings.Contains(images[0], "1000000000") || !strings.Contains(images[29], "1000000029") {
		t.Fatalf("discovery order not preserved: first=%s last=%s", images[0], images[29])
	}
}

func TestCollectImagesFilters(t *testing.T) {
	html := `<html><body>
		<img src="https://img3.idealista.com/logo-header.png">
		<img src="https://img3.idealista.com/loading-spinner.jpg">
		<img src="https://bat.bing.com/action/0?pixel.jpg">
		<img src="https://img3.idealista.com/profilephotos/agent/1234567890.jpg">
		<img src="https://img3.idealista.com/blur/M/x/1111111111.gif">
		<img src="https://img3.idealista.com/blur/M/x/1111111111.jpg">
	</body></html>`
	images := collectFrom(t, html)
	if len(images) != 1 {
		t.Fatalf("expected 1 image after filtering, got %d: %v", len(images), images)
	}
	if !strings.HasSuffix(images[0], "1111111111.jpg") {
		t.Fatalf("unexpected survivor: %s", images[0])
	}
}

func TestCollectImagesFromSrcset(t *testing.T) {
	html := `<html><body>
		<picture><source srcset="https://img3.idealista.com/blur/S/x/2222222222.webp 480w, https://img3.idealista.com/blur/L/x/3333333333.webp 1200w"></picture>
	</body></html>`
	images := collectFrom(t, html)
	if len(images) != 2 {
		t.Fatalf("expected 2 srcset images, got %d: %v", len(images), images)
	}
}

func TestCollectImagesRawHTMLScan(t *testing.T) {
	// Photo URLs inside embedded JSON, no <img> tag at all.
	html := `<html><body><script>var gallery = {"photos":["https:\/\/img3.idealista.com\/blur\/M\/x\/4444444444.jpg"]};
		var other = "https://img4.idealista.com/blur/M/x/5555555555.jpg";</script></body></html>`
	images := collectFrom(t, html)
	if len(images) != 1 {
		t.Fatalf("expected 1 image from raw scan, got %d: %v", len(images), images)
	}
	if !strings.Contains(images[0], "5555555555") {
		t.Fatalf("unexpected image: %s", images[0])
	}
}
