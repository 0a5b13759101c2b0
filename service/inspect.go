package service

import (
	"context"
	"fmt"

	"github.com/viant/kdb/history"
	"github.com/viant/kdb/ledger"
)

// Ledger describes a library ledger without taking the writer lock.
func (s *Service) Ledger(ctx context.Context, req LedgerRequest) (*LedgerResult, error) {
	libraryDir, err := s.resolveLibrary(req.DBType, req.LibraryDir)
	if err != nil {
		return nil, err
	}
	path := ledger.Path(libraryDir)
	if !req.Entries {
		info, err := ledger.Stat(path)
		if err != nil {
			return nil, err
		}
		return &LedgerResult{Info: info}, nil
	}
	entries, info, err := ledger.Read(path)
	if err != nil {
		return nil, err
	}
	return &LedgerResult{Info: info, Entries: entries}, nil
}

// History lists recorded passes, newest first.
func (s *Service) History(ctx context.Context, req HistoryRequest) ([]history.Pass, error) {
	store, err := s.openHistory(ctx)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("service: history disabled")
	}
	defer store.Close()
	library := ""
	if req.DBType != "" {
		library = "k2_" + req.DBType
	}
	return store.List(ctx, library, req.Limit)
}

// HistoryFiles lists the failed and unreadable files of one pass.
func (s *Service) HistoryFiles(ctx context.Context, runID string) ([]history.File, error) {
	store, err := s.openHistory(ctx)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("service: history disabled")
	}
	defer store.Close()
	return store.Files(ctx, runID)
}
