package portal

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"jerseysync/internal/config"
)

// Login form selector chains, ordered by how specific the portal's
// markup has been observed to be.
var (
	usernameSelectors = []string{`input[name='username']`, `#username`, `input[type='text']`}
	passwordSelectors = []string{`input[name='password']`, `#password`, `input[type='password']`}
	submitSelectors   = []string{`input[type='submit']`, `button[type='submit']`}
)

var seasonYearRe = regexp.MustCompile(`check_waiver\('(\d{8})'\)`)

// LoginFlow drives the portal's three-stage login protocol: credentials,
// association selection, season selection.
type LoginFlow struct {
	session *Session
	cfg     config.PortalConfig
	nav     *Navigator
	logger  *zerolog.Logger
}

func NewLoginFlow(s *Session, logger *zerolog.Logger) *LoginFlow {
	return &LoginFlow{
		session: s,
		cfg:     s.cfg,
		nav:     NewNavigator(s.Driver(), logger, s.cfg.TakeScreenshots, s.cfg.ScreenshotDir),
		logger:  logger,
	}
}

// Authenticate runs the full login flow. Any stage failure leaves the
// session unauthenticated; there is no mid-flow resumption.
func (f *LoginFlow) Authenticate(ctx context.Context) error {
	if !f.cfg.HasPortalCredentials() {
		return ErrCredentialsMissing
	}

	d := f.session.Driver()
	f.logger.Info().Str("url", f.cfg.LoginURL).Msg("navigating to login page")
	if err := d.Navigate(ctx, f.cfg.LoginURL); err != nil {
		return &AuthError{Stage: StageLogin, Err: err}
	}

	steps := []Step{
		f.credentialsStep(),
		f.associationStep(),
		f.seasonStep(),
	}
	if err := f.nav.Run(ctx, steps); err != nil {
		f.session.setAuthenticated(false)
		return err
	}

	f.session.setAuthenticated(true)
	f.logger.Info().Msg("login flow completed")
	return nil
}

// Stage names, used in error reporting.
const (
	StageLogin       = "login"
	StageAssociation = "association"
	StageSeason      = "season"
)

func (f *LoginFlow) credentialsStep() Step {
	return Step{
		Stage:     StageLogin,
		Selectors: usernameSelectors,
		Timeout:   f.cfg.PageLoadTimeout,
		Act: func(ctx context.Context, d Driver, matched string) error {
			if err := d.Fill(ctx, matched, f.cfg.Username); err != nil {
				return fmt.Errorf("fill username: %w", err)
			}
			pwSel, err := firstMatch(ctx, d, passwordSelectors, 5*time.Second)
			if err != nil {
				return fmt.Errorf("locate password field: %w", err)
			}
			if err := d.Fill(ctx, pwSel, f.cfg.Password); err != nil {
				return fmt.Errorf("fill password: %w", err)
			}
			submitSel, err := firstMatch(ctx, d, submitSelectors, 5*time.Second)
			if err != nil {
				return fmt.Errorf("locate submit button: %w", err)
			}
			return d.Click(ctx, submitSel)
		},
		ClickRace:  true,
		NavTimeout: f.cfg.PageLoadTimeout,
		// The portal gives no positive login signal; the only accepted
		// success marker is no longer being on the login page.
		Complete: func(url, _ string) bool {
			return !strings.Contains(strings.ToLower(url), "login")
		},
		Required: true,
	}
}

func (f *LoginFlow) associationStep() Step {
	selectors := append([]string{f.cfg.Association.PrimarySelector}, f.cfg.Association.AlternativeSelectors...)
	return Step{
		Stage:     StageAssociation,
		Selectors: selectors,
		Timeout:   f.cfg.Association.Timeout,
		ClickRace: true,
		// Association clicks sometimes navigate fully and sometimes only
		// update the page in place; cap the navigation wait.
		NavTimeout:  5 * time.Second,
		IdleTimeout: time.Second,
		Complete: func(url, title string) bool {
			return strings.Contains(url, "select-season") || strings.Contains(strings.ToLower(title), "season")
		},
	}
}

func (f *LoginFlow) seasonStep() Step {
	return Step{
		Stage:     StageSeason,
		Selectors: []string{f.cfg.Season.LinkSelector},
		Timeout:   f.cfg.Season.Timeout,
		Act: func(ctx context.Context, d Driver, matched string) error {
			return f.clickSeason(ctx, d, matched)
		},
		ClickRace:   true,
		NavTimeout:  10 * time.Second,
		IdleTimeout: 1500 * time.Millisecond,
		Complete: func(url, _ string) bool {
			return strings.Contains(url, "main") || strings.Contains(url, "application") || strings.Contains(url, "tool")
		},
	}
}

// Season holds one selectable season parsed from the portal's link list.
type Season struct {
	Text string
	Year string
}

// DisplayName renders an eight-digit season year as "2023-2024".
func (s Season) DisplayName() string {
	if len(s.Year) != 8 {
		return s.Text
	}
	return s.Year[:4] + "-" + s.Year[4:]
}

func (f *LoginFlow) clickSeason(ctx context.Context, d Driver, matched string) error {
	links, err := d.Links(ctx, matched)
	if err != nil {
		return err
	}
	seasons, indexes := parseSeasons(links)
	if len(seasons) == 0 {
		return fmt.Errorf("no valid season links found")
	}

	pick := 0
	if f.cfg.Season.SelectionStrategy == "specific" {
		pick = -1
		for i, s := range seasons {
			if s.Year == f.cfg.Season.SpecificSeason {
				pick = i
				break
			}
		}
		if pick < 0 {
			return fmt.Errorf("season %s not available (have %s)",
				f.cfg.Season.SpecificSeason, strings.Join(seasonYears(seasons), ", "))
		}
	}

	f.logger.Info().Str("season", seasons[pick].Text).Str("year", seasons[pick].Year).Msg("selecting season")
	return d.ClickNth(ctx, matched, indexes[pick])
}

// parseSeasons extracts seasons from the link list, newest first, with
// the matching original link indexes.
func parseSeasons(links []Link) ([]Season, []int) {
	type entry struct {
		season Season
		index  int
	}
	var entries []entry
	for _, l := range links {
		m := seasonYearRe.FindStringSubmatch(l.OnClick)
		if m == nil {
			continue
		}
		entries = append(entries, entry{
			season: Season{Text: strings.TrimSpace(l.Text), Year: m[1]},
			index:  l.Index,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].season.Year > entries[j].season.Year })

	seasons := make([]Season, len(entries))
	indexes := make([]int, len(entries))
	for i, e := range entries {
		seasons[i] = e.season
		indexes[i] = e.index
	}
	return seasons, indexes
}

func seasonYears(seasons []Season) []string {
	years := make([]string, len(seasons))
	for i, s := range seasons {
		years[i] = s.Year
	}
	return years
}

// AvailableSeasons lists the seasons currently offered on the page.
func (f *LoginFlow) AvailableSeasons(ctx context.Context) ([]Season, error) {
	links, err := f.session.Driver().Links(ctx, f.cfg.Season.LinkSelector)
	if err != nil {
		return nil, err
	}
	seasons, _ := parseSeasons(links)
	return seasons, nil
}

// firstMatch walks a selector chain with a shared timeout, returning the
// first selector with a visible match.
func firstMatch(ctx context.Context, d Driver, selectors []string, timeout time.Duration) (string, error) {
	per := timeout / time.Duration(len(selectors))
	for _, sel := range selectors {
		if err := d.WaitVisible(ctx, sel, per); err == nil {
			return sel, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("none of %s matched within %s", strings.Join(selectors, ", "), timeout)
}
