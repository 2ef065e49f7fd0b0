package domain

import "fmt"

type Rarity string

const (
	RarityLegendary Rarity = "Legendary"
	RarityEpic      Rarity = "Epic"
	RarityRare      Rarity = "Rare"
	RarityUncommon  Rarity = "Uncommon"
	RarityCommon    Rarity = "Common"
)

type Prize struct {
	ID     int
	Name   string
	Rarity Rarity
	Image  string
}

// Outcome is a validated play result. PrizeID is set exactly when Won is.
type Outcome struct {
	Won     bool
	PrizeID *int
}

// RawOutcome is the result exactly as the backend sent it; any field may be
// missing.
type RawOutcome struct {
	Won     *bool
	PrizeID *int
}

type Catalog []Prize

func DefaultCatalog() Catalog {
	return Catalog{
		{ID: 1, Name: "Legendary Dragon NFT", Rarity: RarityLegendary, Image: "assets/prizes/prize-1.png"},
		{ID: 2, Name: "Epic Phoenix NFT", Rarity: RarityEpic, Image: "assets/prizes/prize-2.png"},
		{ID: 3, Name: "Rare Unicorn NFT", Rarity: RarityRare, Image: "assets/prizes/prize-3.png"},
		{ID: 4, Name: "Uncommon Griffin NFT", Rarity: RarityUncommon, Image: "assets/prizes/prize-4.png"},
		{ID: 5, Name: "Common Wolf NFT", Rarity: RarityCommon, Image: "assets/prizes/prize-5.png"},
		{ID: 6, Name: "Legendary Kraken NFT", Rarity: RarityLegendary, Image: "assets/prizes/prize-6.png"},
		{ID: 7, Name: "Epic Cerberus NFT", Rarity: RarityEpic, Image: "assets/prizes/prize-7.png"},
		{ID: 8, Name: "Rare Pegasus NFT", Rarity: RarityRare, Image: "assets/prizes/prize-8.png"},
		{ID: 9, Name: "Uncommon Hydra NFT", Rarity: RarityUncommon, Image: "assets/prizes/prize-9.png"},
	}
}

func (c Catalog) ByID(id int) (Prize, bool) {
	for _, prize := range c {
		if prize.ID == id {
			return prize, true
		}
	}
	return Prize{}, false
}

// Validate checks the shape of a server-issued outcome. The client never
// decides a win itself; it only refuses results it cannot display or mint.
func (c Catalog) Validate(raw RawOutcome) (Outcome, error) {
	if raw.Won == nil {
		return Outcome{}, fmt.Errorf("%w: win flag missing", ErrMalformedResult)
	}

	if !*raw.Won {
		if raw.PrizeID != nil {
			return Outcome{}, fmt.Errorf("%w: losing result carries prize %d", ErrMalformedResult, *raw.PrizeID)
		}
		return Outcome{Won: false}, nil
	}

	if raw.PrizeID == nil {
		return Outcome{}, fmt.Errorf("%w: winning result without prize", ErrMalformedResult)
	}
	if _, ok := c.ByID(*raw.PrizeID); !ok {
		return Outcome{}, fmt.Errorf("%w: %w %d", ErrMalformedResult, ErrUnknownPrize, *raw.PrizeID)
	}

	prizeID := *raw.PrizeID
	return Outcome{Won: true, PrizeID: &prizeID}, nil
}
