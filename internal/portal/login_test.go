package portal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jerseysync/internal/config"
)

func testPortalConfig() config.PortalConfig {
	return config.PortalConfig{
		Username:        "coach",
		Password:        "secret",
		LoginURL:        "https://portal.example.com/tool/login",
		PageLoadTimeout: 500 * time.Millisecond,
		Association: config.AssociationConfig{
			PrimarySelector: `a[onclick*='select_association']`,
			Timeout:         200 * time.Millisecond,
		},
		Season: config.SeasonConfig{
			LinkSelector:      `a[onclick*='check_waiver']`,
			SelectionStrategy: "latest",
			Timeout:           200 * time.Millisecond,
		},
	}
}

func testSession(cfg config.PortalConfig, d Driver) *Session {
	return &Session{
		cfg:    cfg,
		dlCfg:  config.DownloadConfig{Timeout: time.Second},
		logger: nopLogger(),
		driver: d,
	}
}

func TestAuthenticateMissingCredentials(t *testing.T) {
	cfg := testPortalConfig()
	cfg.Password = ""

	s := testSession(cfg, newFakeDriver())
	err := NewLoginFlow(s, nopLogger()).Authenticate(context.Background())
	assert.ErrorIs(t, err, ErrCredentialsMissing)
	assert.False(t, s.Authenticated())
}

func TestAuthenticateFullFlow(t *testing.T) {
	cfg := testPortalConfig()
	d := newFakeDriver()
	// The primary username selector is absent; the id fallback matches.
	d.visible["#username"] = true
	d.visible[`input[name='password']`] = true
	d.visible[`input[type='submit']`] = true
	d.visible[cfg.Association.PrimarySelector] = true
	d.visible[cfg.Season.LinkSelector] = true
	d.links[cfg.Season.LinkSelector] = []Link{
		{Index: 0, Text: "2022-23 Season", OnClick: "check_waiver('20222023')"},
		{Index: 1, Text: "2023-24 Season", OnClick: "check_waiver('20232024')"},
	}
	d.urlAfterClick = "https://portal.example.com/tool/main"

	s := testSession(cfg, d)
	err := NewLoginFlow(s, nopLogger()).Authenticate(context.Background())
	require.NoError(t, err)
	assert.True(t, s.Authenticated())

	assert.Equal(t, "coach", d.fills["#username"])
	assert.Equal(t, "secret", d.fills[`input[name='password']`])
	// The latest strategy picks the newest season's original link index.
	assert.Equal(t, []string{cfg.Season.LinkSelector + "[1]"}, d.clickNth)
}

func TestAuthenticateStillOnLoginPage(t *testing.T) {
	cfg := testPortalConfig()
	d := newFakeDriver()
	d.visible[`input[name='username']`] = true
	d.visible[`input[name='password']`] = true
	d.visible[`input[type='submit']`] = true
	d.url = cfg.LoginURL
	// Submit does not move the page; bad credentials look exactly like this.

	s := testSession(cfg, d)
	err := NewLoginFlow(s, nopLogger()).Authenticate(context.Background())
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, StageLogin, authErr.Stage)
	assert.False(t, s.Authenticated())
}

func TestAuthenticateSpecificSeasonUnavailable(t *testing.T) {
	cfg := testPortalConfig()
	cfg.Season.SelectionStrategy = "specific"
	cfg.Season.SpecificSeason = "20192020"

	d := newFakeDriver()
	d.visible[`input[name='username']`] = true
	d.visible[`input[name='password']`] = true
	d.visible[`input[type='submit']`] = true
	d.visible[cfg.Association.PrimarySelector] = true
	d.visible[cfg.Season.LinkSelector] = true
	d.links[cfg.Season.LinkSelector] = []Link{
		{Index: 0, Text: "2023-24 Season", OnClick: "check_waiver('20232024')"},
	}
	d.urlAfterClick = "https://portal.example.com/tool/main"

	s := testSession(cfg, d)
	err := NewLoginFlow(s, nopLogger()).Authenticate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "20192020")
	assert.Empty(t, d.clickNth)
}

func TestParseSeasonsNewestFirst(t *testing.T) {
	seasons, indexes := parseSeasons([]Link{
		{Index: 0, Text: "2021-22", OnClick: "check_waiver('20212022')"},
		{Index: 1, Text: "Terms of Use", OnClick: "showTerms()"},
		{Index: 2, Text: "2023-24", OnClick: "check_waiver('20232024')"},
		{Index: 3, Text: "2022-23", OnClick: "check_waiver('20222023')"},
	})

	require.Len(t, seasons, 3)
	assert.Equal(t, []string{"20232024", "20222023", "20212022"}, seasonYears(seasons))
	assert.Equal(t, []int{2, 3, 0}, indexes)
}

func TestSeasonDisplayName(t *testing.T) {
	assert.Equal(t, "2023-2024", Season{Year: "20232024"}.DisplayName())
	assert.Equal(t, "whatever", Season{Text: "whatever", Year: "bad"}.DisplayName())
}

func TestFirstMatchWalksChain(t *testing.T) {
	d := newFakeDriver()
	d.visible["#second"] = true

	sel, err := firstMatch(context.Background(), d, []string{"#first", "#second"}, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "#second", sel)

	_, err = firstMatch(context.Background(), d, []string{"#none"}, 50*time.Millisecond)
	assert.Error(t, err)
}
