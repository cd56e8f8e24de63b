package extract

import "testing"

const sampleDetailHTML = `<html><body>
	<h1 class="main-info__title-main">Piso en venta en calle de Alcalá</h1>
	<span class="main-info__title-minor">Calle de Alcalá, Goya, Madrid</span>
	<span class="info-data-price">250.000 €</span>
	<div class="info-features">
		<span>80 m² construidos</span>
		<span>3 hab.</span>
		<span>2 baños</span>
	</div>
	<div class="comment"><p>Luminoso piso en 2ª planta con ascensor y terraza, orientación sur. Edificio construido en 1970.</p></div>
	<img src="https://img3.idealista.com/blur/M/x/1234567890.jpg">
</body></html>`

func TestParseAssemblesListing(t *testing.T) {
	listing, err := Parse(sampleDetailHTML, "https://www.idealista.com/inmueble/12345678/")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if listing.ID != "12345678" {
		t.Fatalf("id = %q", listing.ID)
	}
	if listing.Price != 250000 {
		t.Fatalf("price = %d", listing.Price)
	}
	if listing.Area != 80 || listing.BuiltArea != 80 {
		t.Fatalf("area = %d built = %d", listing.Area, listing.BuiltArea)
	}
	if listing.PricePerArea != 3125 {
		t.Fatalf("price per area = %d, want 3125", listing.PricePerArea)
	}
	if listing.Rooms != 3 || listing.Bathrooms != 2 {
		t.Fatalf("rooms = %d baths = %d", listing.Rooms, listing.Bathrooms)
	}
	if listing.Floor != "Planta 2" {
		t.Fatalf("floor = %q", listing.Floor)
	}
	if !listing.Elevator || !listing.Terrace {
		t.Fatal("expected elevator and terrace")
	}
	if listing.Orientation != "Sur" {
		t.Fatalf("orientation = %q", listing.Orientation)
	}
	if listing.YearBuilt == nil || *listing.YearBuilt != 1970 {
		t.Fatalf("year built = %v", listing.YearBuilt)
	}
	if listing.Zone != "Goya" {
		t.Fatalf("zone = %q", listing.Zone)
	}
	if len(listing.Images) != 1 {
		t.Fatalf("images = %v", listing.Images)
	}
	if !listing.Valid() {
		t.Fatal("listing should be valid")
	}
}

func TestParseEmptyPageStillReturnsRecord(t *testing.T) {
	listing, err := Parse("<html><body></body></html>", "https://www.idealista.com/inmueble/1/")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if listing == nil {
		t.Fatal("expected a record even for an empty page")
	}
	if listing.Valid() {
		t.Fatal("empty page must not be valid")
	}
	if listing.Price != 0 || listing.Area != 0 {
		t.Fatalf("expected sentinel values, got price=%d area=%d", listing.Price, listing.Area)
	}
}

func TestParseAddressFallsBackToTitle(t *testing.T) {
	html := `<html><body>
		<h1 class="main-info__title-main">Chalet en urbanización privada</h1>
		<span class="info-data-price">399.000 €</span>
	</body></html>`
	listing, err := Parse(html, "https://www.idealista.com/inmueble/2/")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if listing.Address != "Chalet en urbanización privada" {
		t.Fatalf("address = %q", listing.Address)
	}
}

func TestParsePricePerAreaZeroWithoutArea(t *testing.T) {
	html := `<html><body><span class="info-data-price">100.000 €</span></body></html>`
	listing, err := Parse(html, "https://www.idealista.com/inmueble/3/")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if listing.PricePerArea != 0 {
		t.Fatalf("price per area = %d, want 0", listing.PricePerArea)
	}
}
