// Package link maintains the current-course symlink.
package link

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/pearcec/courselink/internal/config"
	"github.com/pearcec/courselink/internal/logging"
)

// Outcome describes what Switch did.
type Outcome int

const (
	// OutcomeSkipped means the class path or link path is not configured.
	OutcomeSkipped Outcome = iota
	OutcomeCreated
	OutcomeSwitched
	OutcomeUnchanged
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeSwitched:
		return "switched"
	case OutcomeUnchanged:
		return "unchanged"
	default:
		return "skipped"
	}
}

// Switcher points the current-course link at a class directory.
// It is not safe for concurrent use across processes.
type Switcher struct {
	cfg *config.Config
	log *zap.Logger
}

// NewSwitcher returns a switcher reading paths from cfg.
func NewSwitcher(cfg *config.Config, log *zap.Logger) *Switcher {
	return &Switcher{cfg: cfg, log: logging.OrNop(log)}
}

// Switch points the link at the directory mapped to classID. A missing
// mapping is reported as OutcomeSkipped and leaves the filesystem alone.
func (s *Switcher) Switch(classID string) (Outcome, error) {
	classPath, ok := s.cfg.ClassPath(classID)
	if !ok {
		s.log.Warn("no class path configured", zap.String("class", classID))
		return OutcomeSkipped, nil
	}
	linkPath, ok := s.cfg.CurrentLinkPath()
	if !ok {
		s.log.Warn("no current course link configured", zap.String("key", config.KeyCurrentLink))
		return OutcomeSkipped, nil
	}

	classPath = config.ExpandHome(classPath)
	linkPath = config.ExpandHome(linkPath)

	target, exists, err := readLink(linkPath)
	if err != nil {
		return OutcomeSkipped, err
	}

	if !exists {
		if err := os.Symlink(classPath, linkPath); err != nil {
			return OutcomeSkipped, fmt.Errorf("create link %s: %w", linkPath, err)
		}
		s.log.Info("created link", zap.String("link", linkPath), zap.String("target", classPath))
		return OutcomeCreated, nil
	}

	if target == classPath {
		s.log.Debug("link already current", zap.String("link", linkPath), zap.String("target", target))
		return OutcomeUnchanged, nil
	}

	if err := replace(classPath, linkPath); err != nil {
		return OutcomeSkipped, err
	}
	s.log.Info("switched link",
		zap.String("link", linkPath),
		zap.String("from", target),
		zap.String("to", classPath),
	)
	return OutcomeSwitched, nil
}

// Target returns the current target of the link, or "" when the link is
// absent or not configured.
func (s *Switcher) Target() (string, error) {
	linkPath, ok := s.cfg.CurrentLinkPath()
	if !ok {
		return "", nil
	}
	target, _, err := readLink(config.ExpandHome(linkPath))
	return target, err
}

// readLink uses Lstat so a dangling link still counts as existing.
func readLink(path string) (string, bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return "", true, fmt.Errorf("%s exists and is not a symlink", path)
	}
	target, err := os.Readlink(path)
	if err != nil {
		return "", true, err
	}
	return target, true, nil
}

// replace creates the new link beside the old one and renames it into
// place, so the link path always resolves to either target.
func replace(target, linkPath string) error {
	tmp := filepath.Join(filepath.Dir(linkPath), fmt.Sprintf(".%s.%d.tmp", filepath.Base(linkPath), os.Getpid()))
	_ = os.Remove(tmp)

	if err := os.Symlink(target, tmp); err != nil {
		return fmt.Errorf("create temporary link: %w", err)
	}
	if err := os.Rename(tmp, linkPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace link %s: %w", linkPath, err)
	}
	return nil
}
