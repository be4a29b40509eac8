package resolver

import (
	"crypto/sha1"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"simklscrobbler/models"
)

var (
	sxxexxRE    = regexp.MustCompile(`(?i)\bS(\d{1,2})E(\d{1,3})\b`)
	nxnnRE      = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{2,3})\b`)
	seasonKwRE  = regexp.MustCompile(`(?i)season[\s._-]*(\d{1,2})`)
	episodeKwRE = regexp.MustCompile(`(?i)episode[\s._-]*(\d{1,3})`)
	yearRE      = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	separatorRE = regexp.MustCompile(`[._-]+`)
	collapseRE  = regexp.MustCompile(`\s+`)
)

// GuessedIdentity is the filename-derived identity the guessit-style
// fallback parser produces when no catalog match exists, per spec.md
// §4.5 step 4.
type GuessedIdentity struct {
	Kind    models.Kind
	Title   string
	Year    int
	Season  int
	Episode int
}

// GuessFromFilepath extracts {kind, title, year?, season?, episode?} from a
// filename using the rules: S<dd>E<dd>, <d>x<dd>, or "season"/"episode"
// keywords imply kind=show; otherwise kind=movie. A 4-digit token is taken
// as the year. Separators ".", "_", "-" become spaces in the title.
func GuessFromFilepath(path string) GuessedIdentity {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	g := GuessedIdentity{Kind: models.KindMovie}
	consumed := stem

	switch {
	case sxxexxRE.MatchString(stem):
		m := sxxexxRE.FindStringSubmatch(stem)
		g.Kind = models.KindShow
		g.Season, _ = strconv.Atoi(m[1])
		g.Episode, _ = strconv.Atoi(m[2])
		consumed = strings.Replace(consumed, m[0], " ", 1)
	case nxnnRE.MatchString(stem):
		m := nxnnRE.FindStringSubmatch(stem)
		g.Kind = models.KindShow
		g.Season, _ = strconv.Atoi(m[1])
		g.Episode, _ = strconv.Atoi(m[2])
		consumed = strings.Replace(consumed, m[0], " ", 1)
	default:
		if sm := seasonKwRE.FindStringSubmatch(stem); sm != nil {
			g.Kind = models.KindShow
			g.Season, _ = strconv.Atoi(sm[1])
			consumed = strings.Replace(consumed, sm[0], " ", 1)
		}
		if em := episodeKwRE.FindStringSubmatch(consumed); em != nil {
			g.Kind = models.KindShow
			g.Episode, _ = strconv.Atoi(em[1])
			consumed = strings.Replace(consumed, em[0], " ", 1)
		}
	}

	if m := yearRE.FindStringSubmatch(consumed); m != nil {
		g.Year, _ = strconv.Atoi(m[1])
		consumed = strings.Replace(consumed, m[0], " ", 1)
	}

	title := separatorRE.ReplaceAllString(consumed, " ")
	title = collapseRE.ReplaceAllString(title, " ")
	g.Title = strings.TrimSpace(title)

	return g
}

// ToMediaIdentity builds the guessit-tagged identity stored in the cache
// under the filename key; it carries no simkl_id, only a deterministic
// "guessit:<hash>" placeholder derived from the source filepath so repeat
// observations of the same file land on the same backlog entry.
func (g GuessedIdentity) ToMediaIdentity(originalFilepath string) models.MediaIdentity {
	return models.MediaIdentity{
		SimklID:          "guessit:" + guessitHash(originalFilepath),
		Kind:             g.Kind,
		DisplayTitle:     g.Title,
		Year:             g.Year,
		Season:           g.Season,
		Episode:          g.Episode,
		SourceTag:        models.SourceGuessitFallback,
		OriginalFilepath: originalFilepath,
	}
}

func guessitHash(input string) string {
	sum := sha1.Sum([]byte(strings.ToLower(input)))
	return hex.EncodeToString(sum[:])[:10]
}
