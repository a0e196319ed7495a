// Package lunar computes sexagenary (ganzhi) cycle names for the header
// line. It covers the year and day pillars; the month pillar needs solar
// term tables and is deliberately out of scope.
package lunar

import (
	"fmt"
	"time"
)

var (
	stems    = []string{"甲", "乙", "丙", "丁", "戊", "己", "庚", "辛", "壬", "癸"}
	branches = []string{"子", "丑", "寅", "卯", "辰", "巳", "午", "未", "申", "酉", "戌", "亥"}

	// Romanized forms for faces without CJK coverage.
	stemsPinyin    = []string{"Jia", "Yi", "Bing", "Ding", "Wu", "Ji", "Geng", "Xin", "Ren", "Gui"}
	branchesPinyin = []string{"zi", "chou", "yin", "mao", "chen", "si", "wu", "wei", "shen", "you", "xu", "hai"}
)

// Pillar is one ganzhi pair.
type Pillar struct {
	Stem   int // 0..9
	Branch int // 0..11
}

// String returns the CJK form, e.g. "甲子".
func (p Pillar) String() string {
	return stems[p.Stem] + branches[p.Branch]
}

// Pinyin returns the romanized form, e.g. "Jiazi".
func (p Pillar) Pinyin() string {
	return stemsPinyin[p.Stem] + branchesPinyin[p.Branch]
}

func pillar(n int) Pillar {
	n %= 60
	if n < 0 {
		n += 60
	}
	return Pillar{Stem: n % 10, Branch: n % 12}
}

// dayAnchor is a documented jiazi (cycle position 0) day.
var dayAnchor = time.Date(1949, time.October, 1, 0, 0, 0, 0, time.UTC)

// DayPillar returns the ganzhi pair for the given civil date. The cycle
// advances at local midnight.
func DayPillar(t time.Time) Pillar {
	d := civil(t).Sub(dayAnchor) / (24 * time.Hour)
	return pillar(int(d))
}

// YearPillar returns the ganzhi pair for the given date's Chinese solar
// year. The year boundary is approximated at February 4 (lichun); dates
// before it belong to the previous year's pillar.
func YearPillar(t time.Time) Pillar {
	year := t.Year()
	boundary := time.Date(year, time.February, 4, 0, 0, 0, 0, t.Location())
	if t.Before(boundary) {
		year--
	}
	// 1984 began a cycle (jiazi year).
	return pillar(year - 1984)
}

// HeaderLine formats the lunar portion of the display header, e.g.
// "Yisi year · Jiazi day · Thursday".
func HeaderLine(t time.Time) string {
	return fmt.Sprintf("%s year · %s day · %s",
		YearPillar(t).Pinyin(), DayPillar(t).Pinyin(), t.Weekday().String())
}

func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
