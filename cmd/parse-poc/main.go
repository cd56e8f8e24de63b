package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"idealista-watcher/internal/extract"
)

// Offline extraction check: feed a saved listing page through the
// extractor and print the result as JSON.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	var (
		htmlPath = flag.String("file", "", "path to a saved listing HTML page")
		pageURL  = flag.String("url", "", "original listing URL (used for the id)")
	)
	flag.Parse()

	if *htmlPath == "" {
		fmt.Fprintln(os.Stderr, "usage: parse-poc -file page.html [-url https://www.idealista.com/inmueble/12345678/]")
		os.Exit(2)
	}

	data, err := os.ReadFile(*htmlPath)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *htmlPath, err)
	}

	listing, err := extract.Parse(string(data), *pageURL)
	if err != nil {
		log.Fatalf("Extraction failed: %v", err)
	}

	if !listing.Valid() {
		log.Printf("Warning: no price or address found, page may be blocked or partial")
	}

	out, err := json.MarshalIndent(listing, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal listing: %v", err)
	}

	fmt.Println(string(out))

	log.Printf("Extracted %d fields of interest: price=%d area=%d rooms=%d images=%d",
		countNonZero(listing.Price, listing.Area, listing.Rooms, len(listing.Images)),
		listing.Price, listing.Area, listing.Rooms, len(listing.Images))
}

func countNonZero(values ...int) int {
	n := 0
	for _, v := range values {
		if v != 0 {
			n++
		}
	}
	return n
}
