package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"movierec/internal/auth"
	"movierec/pkg/utils"
)

const defaultBaseURL = "http://localhost:8080"

func main() {
	global := flag.NewFlagSet("movierec", flag.ExitOnError)
	baseURL := global.String("api", defaultBaseURL, "API base URL")
	tokenPath := global.String("token", defaultTokenPath(), "token file path")
	if err := global.Parse(os.Args[1:]); err != nil {
		fatalf("parse flags: %v", err)
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := args[0]
	sub := ""
	rest := []string{}
	if len(args) > 1 {
		sub, rest = args[1], args[2:]
	}

	c := &apiClient{
		http:      &http.Client{Timeout: 15 * time.Second},
		baseURL:   strings.TrimRight(*baseURL, "/"),
		tokenPath: *tokenPath,
	}

	switch cmd {
	case "token":
		handleToken(c, sub, rest)
	case "movies":
		handleMovies(ctx, c, sub, rest)
	case "recommend":
		handleRecommend(ctx, c, sub, rest)
	case "profile":
		handleProfile(ctx, c, sub, rest)
	case "favorites", "watchlist":
		handleList(ctx, c, cmd, sub, rest)
	case "ratings":
		handleRatings(ctx, c, sub, rest)
	case "activity":
		fs := flag.NewFlagSet("activity", flag.ExitOnError)
		typ := fs.String("type", "", "filter by activity type")
		limit := fs.Int("limit", 50, "page size")
		_ = fs.Parse(args[1:])
		qv := url.Values{"limit": {strconv.Itoa(*limit)}}
		setIf(qv, "type", *typ)
		c.printGet(ctx, "/users/me/activity", qv, true)
	case "jobs":
		handleJobs(ctx, c, sub, rest)
	default:
		printUsage()
		os.Exit(1)
	}
}

// handleToken signs tokens locally with the configured secret. There is no
// login endpoint; identities come from whoever holds the secret.
func handleToken(c *apiClient, sub string, args []string) {
	switch sub {
	case "issue":
		fs := flag.NewFlagSet("token issue", flag.ExitOnError)
		user := fs.String("user", "", "user id")
		staff := fs.Bool("staff", false, "grant staff access")
		ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
		_ = fs.Parse(args)
		if *user == "" {
			fatalf("user is required")
		}

		cfg, err := utils.LoadConfig()
		if err != nil {
			fatalf("load config: %v", err)
		}
		ts := auth.TokenService{Secret: []byte(cfg.Auth.JWTSecret), Issuer: cfg.Auth.JWTIssuer, Duration: *ttl}
		tok, exp, err := ts.Sign(*user, *staff)
		if err != nil {
			fatalf("sign token: %v", err)
		}
		if err := saveToken(c.tokenPath, tok); err != nil {
			fatalf("save token: %v", err)
		}
		fmt.Printf("token for %s saved, expires %s\n", *user, exp.Format(time.RFC3339))
	case "clear":
		if err := clearToken(c.tokenPath); err != nil {
			fatalf("clear token: %v", err)
		}
		fmt.Println("token cleared")
	default:
		fatalf("usage: movierec token <issue|clear>")
	}
}

func handleMovies(ctx context.Context, c *apiClient, sub string, args []string) {
	switch sub {
	case "list":
		fs := flag.NewFlagSet("movies list", flag.ExitOnError)
		q := fs.String("q", "", "title filter")
		genre := fs.Int("genre", 0, "catalog genre id")
		sort := fs.String("sort", "", "popularity|rating|release_date|title")
		limit := fs.Int("limit", 20, "page size")
		offset := fs.Int("offset", 0, "offset")
		_ = fs.Parse(args)

		qv := url.Values{}
		setIf(qv, "q", *q)
		setIf(qv, "sort", *sort)
		if *genre > 0 {
			qv.Set("genre", strconv.Itoa(*genre))
		}
		qv.Set("limit", strconv.Itoa(*limit))
		qv.Set("offset", strconv.Itoa(*offset))
		c.printGet(ctx, "/movies", qv, false)
	case "show":
		fs := flag.NewFlagSet("movies show", flag.ExitOnError)
		id := fs.Int64("id", 0, "catalog movie id")
		_ = fs.Parse(args)
		if *id <= 0 {
			fatalf("id is required")
		}
		c.printGet(ctx, "/movies/"+strconv.FormatInt(*id, 10), nil, false)
	case "search":
		fs := flag.NewFlagSet("movies search", flag.ExitOnError)
		q := fs.String("q", "", "search query")
		page := fs.Int("page", 1, "page")
		year := fs.Int("year", 0, "release year")
		adult := fs.Bool("adult", false, "include adult titles")
		_ = fs.Parse(args)
		if *q == "" {
			fatalf("q is required")
		}
		payload := map[string]any{"query": *q, "page": *page, "include_adult": *adult}
		if *year > 0 {
			payload["year"] = *year
		}
		var resp map[string]any
		if err := c.doJSON(ctx, http.MethodPost, "/movies/search", false, payload, &resp); err != nil {
			fatalf("search failed: %v", err)
		}
		printJSON(resp)
	case "list-of":
		fs := flag.NewFlagSet("movies list-of", flag.ExitOnError)
		list := fs.String("list", "popular", "trending|popular|top-rated|upcoming")
		page := fs.Int("page", 1, "page")
		_ = fs.Parse(args)
		c.printGet(ctx, "/lists/"+url.PathEscape(*list), url.Values{"page": {strconv.Itoa(*page)}}, false)
	case "genres":
		c.printGet(ctx, "/genres", nil, false)
	default:
		fatalf("usage: movierec movies <list|show|search|list-of|genres>")
	}
}

func handleRecommend(ctx context.Context, c *apiClient, sub string, args []string) {
	fs := flag.NewFlagSet("recommend "+sub, flag.ExitOnError)
	page := fs.Int("page", 1, "page")
	window := fs.String("window", "", "trending time window (day|week)")
	ids := fs.String("ids", "", "comma separated genre ids")
	movie := fs.Int64("movie", 0, "catalog movie id")
	anon := fs.Bool("anon", false, "do not send the saved token")
	_ = fs.Parse(args)

	qv := url.Values{"page": {strconv.Itoa(*page)}}
	path := "/recommendations"
	switch sub {
	case "trending", "popular":
		qv.Set("type", sub)
		setIf(qv, "time_window", *window)
	case "genres":
		path += "/genres"
		qv.Set("ids", *ids)
	case "similar":
		path += "/similar"
		qv.Set("movie_id", strconv.FormatInt(*movie, 10))
	case "history":
		c.printGet(ctx, "/users/me/recommendations", nil, true)
		return
	default:
		fatalf("usage: movierec recommend <trending|popular|genres|similar|history>")
	}
	c.printGet(ctx, path, qv, !*anon && c.hasToken())
}

func handleProfile(ctx context.Context, c *apiClient, sub string, args []string) {
	switch sub {
	case "show":
		c.printGet(ctx, "/users/me/profile", nil, true)
	case "genres":
		fs := flag.NewFlagSet("profile genres", flag.ExitOnError)
		ids := fs.String("ids", "", "comma separated catalog genre ids")
		_ = fs.Parse(args)
		parsed, err := parseIDs(*ids)
		if err != nil {
			fatalf("%v", err)
		}
		var resp map[string]any
		if err := c.doJSON(ctx, http.MethodPut, "/users/me/profile/genres", true, map[string]any{"genre_ids": parsed}, &resp); err != nil {
			fatalf("set genres failed: %v", err)
		}
		printJSON(resp)
	default:
		fatalf("usage: movierec profile <show|genres>")
	}
}

// handleList manages the favorites and watchlist, which share one shape.
func handleList(ctx context.Context, c *apiClient, list, sub string, args []string) {
	fs := flag.NewFlagSet(list+" "+sub, flag.ExitOnError)
	movieID := fs.Int64("movie", 0, "internal movie id")
	limit := fs.Int("limit", 20, "page size")
	_ = fs.Parse(args)

	switch sub {
	case "list":
		c.printGet(ctx, "/users/me/"+list, url.Values{"limit": {strconv.Itoa(*limit)}}, true)
	case "add", "remove":
		if *movieID <= 0 {
			fatalf("movie is required")
		}
		method, path, payload := http.MethodPost, "/users/me/"+list, any(map[string]any{"movie_id": *movieID})
		if sub == "remove" {
			method, path, payload = http.MethodDelete, path+"/"+strconv.FormatInt(*movieID, 10), nil
		}
		var resp map[string]any
		if err := c.doJSON(ctx, method, path, true, payload, &resp); err != nil {
			fatalf("%s %s failed: %v", list, sub, err)
		}
		printJSON(resp)
	default:
		fatalf("usage: movierec %s <list|add|remove>", list)
	}
}

func handleRatings(ctx context.Context, c *apiClient, sub string, args []string) {
	fs := flag.NewFlagSet("ratings "+sub, flag.ExitOnError)
	movieID := fs.Int64("movie", 0, "internal movie id")
	rating := fs.Float64("rating", 0, "0.5 to 5")
	review := fs.String("review", "", "optional review text")
	_ = fs.Parse(args)

	switch sub {
	case "list":
		c.printGet(ctx, "/users/me/ratings", nil, true)
	case "set":
		if *movieID <= 0 {
			fatalf("movie is required")
		}
		var resp map[string]any
		if err := c.doJSON(ctx, http.MethodPost, "/users/me/ratings", true, map[string]any{
			"movie_id": *movieID,
			"rating":   *rating,
			"review":   *review,
		}, &resp); err != nil {
			fatalf("rate failed: %v", err)
		}
		printJSON(resp)
	case "remove":
		if *movieID <= 0 {
			fatalf("movie is required")
		}
		if err := c.doJSON(ctx, http.MethodDelete, "/users/me/ratings/"+strconv.FormatInt(*movieID, 10), true, nil, nil); err != nil {
			fatalf("remove rating failed: %v", err)
		}
	default:
		fatalf("usage: movierec ratings <list|set|remove>")
	}
}

func handleJobs(ctx context.Context, c *apiClient, sub string, args []string) {
	switch sub {
	case "run":
		fs := flag.NewFlagSet("jobs run", flag.ExitOnError)
		name := fs.String("name", "", "job name")
		argv := fs.String("args", "", "comma separated key=value pairs")
		_ = fs.Parse(args)
		if *name == "" {
			fatalf("name is required")
		}
		jobArgs, err := parseArgs(*argv)
		if err != nil {
			fatalf("%v", err)
		}
		var resp map[string]any
		if err := c.doJSON(ctx, http.MethodPost, "/admin/jobs/"+url.PathEscape(*name), true, map[string]any{"args": jobArgs}, &resp); err != nil {
			fatalf("enqueue failed: %v", err)
		}
		printJSON(resp)
	case "list":
		fs := flag.NewFlagSet("jobs list", flag.ExitOnError)
		state := fs.String("state", "", "queued|running|succeeded|failed")
		limit := fs.Int("limit", 20, "page size")
		_ = fs.Parse(args)
		qv := url.Values{"limit": {strconv.Itoa(*limit)}}
		setIf(qv, "state", *state)
		c.printGet(ctx, "/admin/jobs", qv, true)
	case "show":
		fs := flag.NewFlagSet("jobs show", flag.ExitOnError)
		id := fs.String("id", "", "run id")
		_ = fs.Parse(args)
		if *id == "" {
			fatalf("id is required")
		}
		c.printGet(ctx, "/admin/jobs/runs/"+url.PathEscape(*id), nil, true)
	case "definitions":
		c.printGet(ctx, "/admin/jobs/definitions", nil, true)
	case "watch":
		if err := c.watch("/admin/ws/jobs"); err != nil {
			fatalf("watch failed: %v", err)
		}
	default:
		fatalf("usage: movierec jobs <run|list|show|definitions|watch>")
	}
}

func printUsage() {
	fmt.Println("movierec [-api URL] [-token PATH] <command> [subcommand] [flags]")
	fmt.Println("commands:")
	fmt.Println("  token issue|clear")
	fmt.Println("  movies list|show|search|list-of|genres")
	fmt.Println("  recommend trending|popular|genres|similar|history")
	fmt.Println("  profile show|genres")
	fmt.Println("  favorites|watchlist list|add|remove")
	fmt.Println("  ratings list|set|remove")
	fmt.Println("  activity [-type T]")
	fmt.Println("  jobs run|list|show|definitions|watch")
}
