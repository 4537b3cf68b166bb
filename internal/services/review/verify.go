package review

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/claimlens/internal/common"
	"github.com/ternarybob/claimlens/internal/interfaces"
	"github.com/ternarybob/claimlens/internal/models"
)

const (
	defaultVerifyWorkers   = 8
	defaultVerifyPerMinute = 60
)

// verifyClaims runs grounded verification for every claim under the
// shared rate limiter and a bounded worker pool. Results keep claim
// order. The first failure cancels outstanding work and fails the whole
// pass so no partial records reach storage.
func (s *Service) verifyClaims(ctx context.Context, template string, claims []string) ([]*verification, error) {
	if len(claims) == 0 {
		return nil, nil
	}

	workers := s.review.VerifyWorkers
	if workers <= 0 {
		workers = defaultVerifyWorkers
	}

	vctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]*verification, len(claims))
	sem := make(chan struct{}, workers)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		cancel()
	}

	for i, claim := range claims {
		wg.Add(1)
		go func(idx int, claim string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-vctx.Done():
				return
			}

			result, err := s.verifyClaim(vctx, template, claim)
			if err != nil {
				fail(fmt.Errorf("verification failed for claim %d: %w", idx+1, err))
				return
			}
			results[idx] = result
		}(i, claim)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// verifyClaim formats the verification prompt for one claim and runs a
// search-grounded generation against the verify model
func (s *Service) verifyClaim(ctx context.Context, template string, claim string) (*verification, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	prompt := common.ReplaceKeyReferences(template, map[string]string{"input_claim": claim}, s.logger)

	req := &interfaces.GenerateRequest{
		Model: s.gemini.VerifyModel,
		Messages: []interfaces.Message{
			{Role: string(models.MessageRoleUser), Content: prompt},
		},
		EnableSearch: true,
		Temperature:  &s.gemini.VerifyTemperature,
	}

	resp, err := s.llm.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return nil, fmt.Errorf("verification returned an empty response")
	}

	return structureVerification(resp), nil
}
