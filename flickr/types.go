package flickr

import (
	"fmt"

	"github.com/aluiziolira/go-flickfinder/extract"
)

var (
	statPath    = extract.Keys("stat")
	pagesPath   = extract.Keys("photos", "pages")
	photosPath  = extract.Keys("photos", "photo")
	mediumPath  = extract.Keys("url_m")
	titlePath   = extract.Keys("title")
	messagePath = extract.Keys("message")
)

// photoEntry is the part of a search or gallery photo we render.
type photoEntry struct {
	Title    string
	ImageURL string
}

// checkStat surfaces {"stat":"fail","code":100,"message":"Invalid API Key"},
// which Flickr sends with a 200 status.
func checkStat(payload any) error {
	stat, err := extract.String(payload, statPath, nil)
	if err != nil || stat != "fail" {
		return nil
	}
	message, _ := extract.String(payload, messagePath, nil)
	code, _ := extract.Int(payload, extract.Keys("code"), nil)
	return extract.Invalid(statPath.String(), fmt.Errorf("flickr error %d: %s", code, message))
}

func parsePageCount(payload any) (int, error) {
	return extract.Int(payload, pagesPath, nil)
}

// pickEntry draws one element of photos.photo and requires url_m and title.
func pickEntry(payload any, rng extract.Rand) (photoEntry, error) {
	node, err := extract.Walk(payload, photosPath.Then(extract.Random()), rng)
	if err != nil {
		return photoEntry{}, err
	}
	imageURL, err := extract.String(node, mediumPath, nil)
	if err != nil {
		return photoEntry{}, err
	}
	title, err := extract.String(node, titlePath, nil)
	if err != nil {
		return photoEntry{}, err
	}
	return photoEntry{Title: title, ImageURL: imageURL}, nil
}
