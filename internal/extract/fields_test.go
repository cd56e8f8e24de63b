package extract

import "testing"

func mustDoc(t *testing.T, html string) (docText string) {
	t.Helper()
	_, text, err := Normalize(html)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	return text
}

func TestExtractPrice(t *testing.T) {
	html := `<html><body><span class="info-data-price">1.250.000 €</span></body></html>`
	doc, _, err := Normalize(html)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got := extractPrice(doc); got != 1250000 {
		t.Fatalf("expected 1250000, got %d", got)
	}
}

func TestExtractPriceMissing(t *testing.T) {
	doc, _, err := Normalize(`<html><body><p>no price here</p></body></html>`)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got := extractPrice(doc); got != 0 {
		t.Fatalf("expected sentinel 0, got %d", got)
	}
}

func TestExtractFloor(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"Piso en 3ª planta con ascensor", "Planta 3"},
		{"Situado en planta 5 exterior", "Planta 5"},
		{"Vivienda en bajo con patio", "Bajo"},
		{"Precioso ático con terraza", "Ático"},
		{"Local en semisótano", "Semisótano"},
		{"Casa unifamiliar con jardín", ""},
	}
	for _, c := range cases {
		if got := extractFloor(c.text); got != c.want {
			t.Fatalf("extractFloor(%q) = %q, want %q", c.text, got, c.want)
		}
	}
}

func TestExtractElevator(t *testing.T) {
	if !extractElevator("Edificio con ascensor y portero") {
		t.Fatal("expected elevator true")
	}
	if extractElevator("Tercera planta sin ascensor") {
		t.Fatal("negated mention should report false")
	}
	if extractElevator("El edificio no tiene ascensor") {
		t.Fatal("negated mention should report false")
	}
	if !extractElevator("Luminoso piso con ascensor") {
		t.Fatal("plain mention should report true")
	}
	if extractElevator("Casa adosada de dos plantas") {
		t.Fatal("no mention should report false")
	}
}

func TestExtractRoomsAndBathrooms(t *testing.T) {
	text := "Piso de 3 habitaciones y 2 baños en pleno centro"
	if got := extractRooms(text); got != 3 {
		t.Fatalf("rooms = %d, want 3", got)
	}
	if got := extractBathrooms(text); got != 2 {
		t.Fatalf("bathrooms = %d, want 2", got)
	}
	if got := extractRooms("4 hab. reformadas"); got != 4 {
		t.Fatalf("abbreviated rooms = %d, want 4", got)
	}
}

func TestExtractYearBuilt(t *testing.T) {
	if got := extractYearBuilt("Edificio construido en 1964"); got != 1964 {
		t.Fatalf("year = %d, want 1964", got)
	}
	if got := extractYearBuilt("año 2027 de entrega prevista"); got != 2027 {
		t.Fatalf("year = %d, want 2027", got)
	}
	// Out of the plausible range
	if got := extractYearBuilt("construido en 1492"); got != 0 {
		t.Fatalf("year = %d, want 0", got)
	}
	if got := extractYearBuilt("sin datos de antigüedad"); got != 0 {
		t.Fatalf("year = %d, want 0", got)
	}
}

func TestExtractOrientation(t *testing.T) {
	if got := extractOrientation("Orientación suroeste, muy luminoso"); got != "Suroeste" {
		t.Fatalf("orientation = %q, want Suroeste", got)
	}
	if got := extractOrientation("orientación noreste"); got != "Noreste" {
		t.Fatalf("orientation = %q, want Noreste", got)
	}
	if got := extractOrientation("ventanas al sur"); got != "Sur" {
		t.Fatalf("orientation = %q, want Sur", got)
	}
	if got := extractOrientation("piso interior reformado"); got != "" {
		t.Fatalf("orientation = %q, want empty", got)
	}
}

func TestExtractDaysPublished(t *testing.T) {
	if got := extractDaysPublished("Anuncio actualizado hace 12 días"); got != 12 {
		t.Fatalf("days = %d, want 12", got)
	}
	if got := extractDaysPublished("Anuncio actualizado hace 1 día"); got != 1 {
		t.Fatalf("days = %d, want 1", got)
	}
	if got := extractDaysPublished("Anuncio actualizado hace 3 horas"); got != 1 {
		t.Fatalf("hour granularity should collapse to 1, got %d", got)
	}
	if got := extractDaysPublished("publicado ayer"); got != 1 {
		t.Fatalf("ayer should collapse to 1, got %d", got)
	}
	if got := extractDaysPublished("sin fecha"); got != 0 {
		t.Fatalf("days = %d, want 0", got)
	}
}

func TestExtractParking(t *testing.T) {
	incl := "Piso con plaza de garaje incluida en el precio"
	if !extractParkingIncluded(incl) {
		t.Fatal("expected parking included")
	}
	opt := "Garaje opcional por 15.000 € adicionales"
	if extractParkingIncluded(opt) {
		t.Fatal("optional parking must not count as included")
	}
	if !extractParkingOptional(opt) {
		t.Fatal("expected parking optional")
	}
}

func TestExtractAreas(t *testing.T) {
	html := `<html><body>
		<div class="info-features"><span>90 m² construidos</span><span>75 m² útiles</span></div>
	</body></html>`
	doc, text, err := Normalize(html)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got := extractBuiltSize(text, doc); got != 90 {
		t.Fatalf("built = %d, want 90", got)
	}
	if got := extractUsableSize(text); got != 75 {
		t.Fatalf("usable = %d, want 75", got)
	}
}

func TestExtractZone(t *testing.T) {
	html := `<html><body><span class="main-info__title-minor">Calle de Alcalá, Goya, Madrid</span></body></html>`
	doc, _, err := Normalize(html)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got := extractZone(doc); got != "Goya" {
		t.Fatalf("zone = %q, want Goya", got)
	}
}

func TestPropertyIDFromURL(t *testing.T) {
	if got := PropertyIDFromURL("https://www.idealista.com/inmueble/12345678/"); got != "12345678" {
		t.Fatalf("id = %q, want 12345678", got)
	}
	if got := PropertyIDFromURL("https://example.com/listing/987654/"); got != "987654" {
		t.Fatalf("fallback id = %q, want 987654", got)
	}
}

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	text := mustDoc(t, "<html><body><p>hola\n\t  mundo</p></body></html>")
	if text != "hola mundo" {
		t.Fatalf("text = %q, want %q", text, "hola mundo")
	}
}
