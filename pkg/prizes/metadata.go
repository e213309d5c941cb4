package prizes

import "strconv"

// Metadata is the display information known for a prize or badge asset
type Metadata struct {
	AssetID string  `json:"assetId"`
	Title   *string `json:"title"`
	Image   *string `json:"image"`
}

type metadataEntry struct {
	image string
	title string
}

var knownAssets = map[uint64]metadataEntry{
	3215542832: {image: "Prize1.png"},
	3215542841: {image: "Prize2.png"},
	3215542837: {image: "Prize3.png"},
	3257999518: {image: "Prize4.png"},
	3257999523: {image: "Prize5.png"},
	3257999514: {image: "Prize6.png", title: "MS Pacman Game"},
	3257999513: {image: "Prize7.png", title: "Creality 3D Printer"},
	3257999515: {image: "secretprize.png", title: "Secret prize"},
	3300006144: {image: "Prize8.png"},
	3311114042: {image: "Prize9.PNG"},
	3323502873: {
		image: "week9.png",
		title: "Week 9 Algoland VRF prize minted by HHADCZKQV24QDCBER5GTOH7BOLF4ZQ6WICNHAA3GZUECIMJXIIMYBIWEZM",
	},
	3311114119: {image: "Prize10.png"},
	3341903705: {image: "Prize11.png"},
}

// Lookup returns the static metadata of an asset
func Lookup(assetID uint64) (Metadata, bool) {
	entry, ok := knownAssets[assetID]
	if !ok || assetID == 0 {
		return Metadata{}, false
	}
	return Metadata{
		AssetID: strconv.FormatUint(assetID, 10),
		Title:   optional(entry.title),
		Image:   optional(entry.image),
	}, true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
