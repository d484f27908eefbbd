// Package seed fills a store with fake users, posts, likes and connections
// for development. It goes through the repository interfaces, so the same
// plan works on every storage driver.
package seed

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Plan sizes a seeding run.
type Plan struct {
	Users                 int     `yaml:"users"`
	PostsPerUser          int     `yaml:"posts_per_user"`
	MaxLikesPerPost       int     `yaml:"max_likes_per_post"`
	Connections           int     `yaml:"connections"`
	MessagesPerConnection int     `yaml:"messages_per_connection"`
	RevealRatio           float64 `yaml:"reveal_ratio"`
	Password              string  `yaml:"password"`
	Seed                  int64   `yaml:"seed"`
}

// DefaultPlan is used when no plan file is given.
var DefaultPlan = Plan{
	Users:                 50,
	PostsPerUser:          4,
	MaxLikesPerPost:       40,
	Connections:           60,
	MessagesPerConnection: 40,
	RevealRatio:           0.3,
	Password:              "password123",
}

// LoadPlan reads a YAML plan. Keys missing from the file keep their
// DefaultPlan values.
func LoadPlan(path string) (Plan, error) {
	plan := DefaultPlan
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("read seed plan: %w", err)
	}
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return Plan{}, fmt.Errorf("parse seed plan %s: %w", path, err)
	}
	if err := plan.Validate(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// Validate rejects plans that cannot be satisfied.
func (p Plan) Validate() error {
	var errs []error
	if p.Users < 0 || p.PostsPerUser < 0 || p.MaxLikesPerPost < 0 || p.Connections < 0 || p.MessagesPerConnection < 0 {
		errs = append(errs, errors.New("counts must not be negative"))
	}
	if p.Connections > 0 && p.Users < 2 {
		errs = append(errs, errors.New("connections need at least two users"))
	}
	if maxPairs := p.Users * (p.Users - 1) / 2; p.Connections > maxPairs && p.Users >= 2 {
		errs = append(errs, fmt.Errorf("%d users allow at most %d connections", p.Users, maxPairs))
	}
	if p.RevealRatio < 0 || p.RevealRatio > 1 {
		errs = append(errs, errors.New("reveal_ratio must be within [0, 1]"))
	}
	if len(p.Password) < 8 {
		errs = append(errs, errors.New("password must have at least 8 characters"))
	}
	return errors.Join(errs...)
}
