package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/js0n-statham/Cab-Driving-Agent/cab"
)

var errNoEpisode = errors.New("no episode, call /reset first")

// Server exposes a single cab.Env over HTTP so that an agent can run out of process
type Server struct {
	Addr   string
	ctx    context.Context
	server *http.Server

	lock          *sync.Mutex
	env           *cab.Env
	steps         int
	episodeReward float64
}

type stepRequest struct {
	Pickup *int `json:"pickup" binding:"required"`
	Drop   *int `json:"drop" binding:"required"`
}

type stepResponse struct {
	Reward        float64          `json:"reward"`
	Elapsed       float64          `json:"elapsed"`
	Next          *cab.Observation `json:"next"`
	EpisodeHours  float64          `json:"episode_hours"`
	EpisodeReward float64          `json:"episode_reward"`
	Steps         int              `json:"steps"`
}

type requestsResponse struct {
	State    cab.State    `json:"state"`
	Indices  []int        `json:"indices"`
	Requests []cab.Action `json:"requests"`
	Terminal bool         `json:"terminal"`
}

func NewServer(ctx context.Context, addr string, env *cab.Env) *Server {
	s := &Server{
		Addr: addr,
		ctx:  ctx,
		lock: new(sync.Mutex),
		env:  env,
	}
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	return s
}

// Handler returns the routes of the server
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	r.POST("/reset", s.handleReset)
	r.GET("/requests", s.handleRequests)
	r.POST("/step", s.handleStep)
	r.GET("/encode", s.handleEncode)
	r.GET("/spaces", s.handleSpaces)
	return r
}

// statusFor maps the cab errors to http status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, errNoEpisode):
		return http.StatusConflict
	case errors.Is(err, cab.ErrOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, cab.ErrSampling), errors.Is(err, cab.ErrConfiguration):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func abort(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) handleReset(c *gin.Context) {
	s.lock.Lock()
	defer s.lock.Unlock()

	state, err := s.env.Reset(nil)
	if err != nil {
		abort(c, err)
		return
	}
	s.steps = 0
	s.episodeReward = 0
	c.JSON(http.StatusOK, s.requestsFor(state.(*cab.Observation)))
}

// requestsFor lists the requests of obs along with their action space indices
func (s *Server) requestsFor(obs *cab.Observation) requestsResponse {
	indices := make([]int, len(obs.Requests))
	for i, a := range obs.Requests {
		indices[i], _ = s.env.Driver().ActionIndex(a)
	}
	return requestsResponse{
		State:    obs.State,
		Indices:  indices,
		Requests: obs.Requests,
		Terminal: obs.Terminal,
	}
}

func (s *Server) handleRequests(c *gin.Context) {
	s.lock.Lock()
	defer s.lock.Unlock()

	obs := s.env.Current()
	if obs == nil {
		abort(c, errNoEpisode)
		return
	}
	if c.Query("resample") == "true" {
		var err error
		if obs, err = s.env.Resample(); err != nil {
			abort(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, s.requestsFor(obs))
}

func (s *Server) handleStep(c *gin.Context) {
	req := stepRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to unmarshal request"})
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.env.Current() == nil {
		abort(c, errNoEpisode)
		return
	}
	if s.env.Current().Terminal {
		c.JSON(http.StatusConflict, gin.H{"error": "episode is over, call /reset"})
		return
	}
	before := s.env.Clock()
	next, reward, err := s.env.Step(cab.Action{Pickup: *req.Pickup, Drop: *req.Drop}, nil)
	if err != nil {
		abort(c, err)
		return
	}
	s.steps += 1
	s.episodeReward += reward

	c.JSON(http.StatusOK, stepResponse{
		Reward:        reward,
		Elapsed:       s.env.Clock() - before,
		Next:          next.(*cab.Observation),
		EpisodeHours:  s.env.Clock(),
		EpisodeReward: s.episodeReward,
		Steps:         s.steps,
	})
}

// handleEncode encodes the current state, or the state given by the location, hour and day query parameters
func (s *Server) handleEncode(c *gin.Context) {
	s.lock.Lock()
	defer s.lock.Unlock()

	var state cab.State
	if _, ok := c.GetQuery("location"); ok {
		values := make([]int, 3)
		for i, key := range []string{"location", "hour", "day"} {
			v, err := strconv.Atoi(c.Query(key))
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
				return
			}
			values[i] = v
		}
		state = cab.State{Location: values[0], Hour: values[1], Day: values[2]}
	} else {
		obs := s.env.Current()
		if obs == nil {
			abort(c, errNoEpisode)
			return
		}
		state = obs.State
	}

	vec, err := s.env.Driver().Encode(state)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state, "vector": vec})
}

func (s *Server) handleSpaces(c *gin.Context) {
	driver := s.env.Driver()
	config := driver.Config()
	c.JSON(http.StatusOK, gin.H{
		"action_space":     driver.ActionSpace(),
		"state_space_size": config.StateSpaceSize(),
		"encoding_size":    config.EncodingSize(),
		"locations":        config.Locations,
		"hours_per_day":    config.HoursPerDay,
		"days_per_week":    config.DaysPerWeek,
		"episode_hours":    config.EpisodeHours,
	})
}

// Run serves until the context is cancelled
func (s *Server) Run() error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.Addr).Msg("starting environment server")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-s.ctx.Done():
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	log.Info().Msg("shutting down environment server")
	return s.server.Shutdown(ctx)
}
