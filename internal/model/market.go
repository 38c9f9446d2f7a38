package model

import "time"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Closes extracts the close column of a bar series.
func Closes(bars []OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// DepthLevel is one price level of an order book side.
type DepthLevel struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// MarketDepth is an order book snapshot, best levels first.
type MarketDepth struct {
	Symbol string       `json:"symbol"`
	Bids   []DepthLevel `json:"bids"`
	Asks   []DepthLevel `json:"asks"`
}

// SentimentBreakdown counts articles by sentiment label.
type SentimentBreakdown struct {
	Bullish int `json:"bullish"`
	Bearish int `json:"bearish"`
	Neutral int `json:"neutral"`
}

// Headline is one scored news article.
type Headline struct {
	Title     string  `json:"title"`
	Score     float64 `json:"sentiment_score"`
	Label     string  `json:"sentiment_label"`
	Published string  `json:"time_published"`
}

// Sentiment is an aggregate news tone in [-1, 1]. The zero value is neutral.
type Sentiment struct {
	Overall   float64            `json:"overall_sentiment"`
	NewsCount int                `json:"news_count"`
	Breakdown SentimentBreakdown `json:"breakdown"`
	TopNews   []Headline         `json:"top_news,omitempty"`
}
