// Package quote serves the quote of the day. The pick depends only on the
// calendar day in the service timezone, so every client sees the same one.
package quote

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/moody-app/moody/internal/pkg/clock"
	"github.com/moody-app/moody/internal/pkg/datekey"
	"github.com/moody-app/moody/internal/pkg/response"
)

type Quote struct {
	Text   string `json:"text"`
	Author string `json:"author,omitempty"`
}

var quotes = []Quote{
	{"Your mood is like the weather – it changes, but the sun always comes back to shine again.", "Unknown"},
	{"Every day may not be good, but there's something good in every day.", "Alice Morse Earle"},
	{"The only way to do great work is to love what you do.", "Steve Jobs"},
	{"Happiness is not something ready made. It comes from your own actions.", "Dalai Lama"},
	{"Be yourself; everyone else is already taken.", "Oscar Wilde"},
	{"The best time to plant a tree was 20 years ago. The second best time is now.", "Chinese Proverb"},
	{"Your emotions are the slaves to your thoughts, and you are the slave to your emotions.", "Elizabeth Gilbert"},
	{"Life is 10% what happens to you and 90% how you react to it.", "Charles R. Swindoll"},
	{"The only impossible journey is the one you never begin.", "Tony Robbins"},
	{"In the middle of difficulty lies opportunity.", "Albert Einstein"},
	{"A positive attitude causes a chain reaction of positive thoughts, events and outcomes.", "Wade Boggs"},
	{"You are never too old to set another goal or to dream a new dream.", "C.S. Lewis"},
	{"Believe you can and you're halfway there.", "Theodore Roosevelt"},
	{"The purpose of our lives is to be happy.", "Dalai Lama"},
	{"Success is not final, failure is not fatal: it is the courage to continue that counts.", "Winston Churchill"},
	{"Your time is limited, don't waste it living someone else's life.", "Steve Jobs"},
	{"The way to get started is to quit talking and begin doing.", "Walt Disney"},
	{"Don't watch the clock; do what it does. Keep going.", "Sam Levenson"},
	{"Keep your face always toward the sunshine—and shadows will fall behind you.", "Walt Whitman"},
	{"It is during our darkest moments that we must focus to see the light.", "Aristotle"},
	{"The future belongs to those who believe in the beauty of their dreams.", "Eleanor Roosevelt"},
	{"You must be the change you wish to see in the world.", "Mahatma Gandhi"},
	{"Spread love everywhere you go. Let no one ever come to you without leaving happier.", "Mother Teresa"},
	{"The only way to have a friend is to be one.", "Ralph Waldo Emerson"},
	{"Life is really simple, but we insist on making it complicated.", "Confucius"},
	{"May you live all the days of your life.", "Jonathan Swift"},
	{"Life itself is the most wonderful fairy tale.", "Hans Christian Andersen"},
	{"Do not go where the path may lead, go instead where there is no path and leave a trail.", "Ralph Waldo Emerson"},
	{"You will face many defeats in life, but never let yourself be defeated.", "Maya Angelou"},
	{"The greatest glory in living lies not in never falling, but in rising every time we fall.", "Nelson Mandela"},
	{"Nothing is impossible, the word itself says, 'I'm possible!'", "Audrey Hepburn"},
}

// ForDay picks by day of year, so the quote changes at local midnight.
func ForDay(t time.Time) Quote {
	return quotes[t.YearDay()%len(quotes)]
}

// RegisterRoutes mounts GET /quote.
func RegisterRoutes(rg *gin.RouterGroup, c clock.Clock, loc *time.Location) {
	c = clock.OrReal(c)
	if loc == nil {
		loc = time.UTC
	}
	rg.GET("/quote", func(ctx *gin.Context) {
		now := clock.InZone(c.Now(), loc)
		q := ForDay(now)
		response.OK(ctx, gin.H{"date": datekey.FromTime(now), "text": q.Text, "author": q.Author})
	})
}
