package app

import (
	"fmt"

	"github.com/aradpay/golang_services/internal/platform/apperrors"
	"github.com/aradpay/golang_services/internal/transaction_service/domain"
)

// ProcessorRegistry is the single dispatch point from workflow name to processor.
// It is built once at startup and read-only afterwards.
type ProcessorRegistry struct {
	processors map[domain.WorkflowName]TransactionProcessor
}

// NewProcessorRegistry fails when any known workflow has no processor, so a misconfigured
// binary refuses to start instead of rejecting requests later.
func NewProcessorRegistry(processors map[domain.WorkflowName]TransactionProcessor) (*ProcessorRegistry, error) {
	for _, name := range domain.AllWorkflowNames {
		if processors[name] == nil {
			return nil, fmt.Errorf("no processor registered for workflow %s", name)
		}
	}
	copied := make(map[domain.WorkflowName]TransactionProcessor, len(processors))
	for name, p := range processors {
		copied[name] = p
	}
	return &ProcessorRegistry{processors: copied}, nil
}

// Get returns the processor for name. An unknown name is a configuration error, never retried.
func (r *ProcessorRegistry) Get(name domain.WorkflowName) (TransactionProcessor, error) {
	p, ok := r.processors[name]
	if !ok {
		return nil, apperrors.NewUnknownError("no processor registered for workflow %q", name)
	}
	return p, nil
}
