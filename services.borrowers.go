package main

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

const msgBorrowerNotFound = "Borrower with given id not found."

// BorrowerServiceProvider maps system users to borrower profiles.
type BorrowerServiceProvider interface {
	CreateBorrower(ctx context.Context, name string) (Borrower, error)
	FindByID(ctx context.Context, id string) (Borrower, bool, error)
	FindByUserID(ctx context.Context, userID string) (Borrower, bool, error)
	RegisterOrGet(ctx context.Context, user User) (Borrower, error)
	List(ctx context.Context, params PageParams) (Page[Borrower], error)
	Update(ctx context.Context, id string, name string) (Borrower, error)
	Remove(ctx context.Context, id string) error
}

var _ BorrowerServiceProvider = (*BorrowerService)(nil)

type BorrowerService struct {
	logger    *zap.Logger
	clock     Clocker
	borrowers Store[Borrower]
}

func NewBorrowerService(logger *zap.Logger, clock Clocker, borrowers Store[Borrower]) *BorrowerService {
	return &BorrowerService{
		logger:    logger,
		clock:     clock,
		borrowers: borrowers,
	}
}

func (bs *BorrowerService) CreateBorrower(ctx context.Context, name string) (Borrower, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Borrower{}, InvalidFormat("Borrower name is required.")
	}
	borrower, err := bs.borrowers.Create(ctx, Borrower{Name: name, CreatedAt: bs.clock.Now()})
	if _, ok := AsDuplicateKey(err); ok {
		return Borrower{}, Conflict("Borrower with name(%s) already exists.", name)
	}
	return borrower, err
}

// FindByID reports an absent profile with false instead of an error.
func (bs *BorrowerService) FindByID(ctx context.Context, id string) (Borrower, bool, error) {
	return bs.findOne(ctx, ByID(id))
}

// FindByUserID reports an absent profile with false instead of an error.
func (bs *BorrowerService) FindByUserID(ctx context.Context, userID string) (Borrower, bool, error) {
	if userID == "" {
		return Borrower{}, false, nil
	}
	return bs.findOne(ctx, Where(Eq(BorrowerFieldUser, userID)))
}

// RegisterOrGet returns the profile linked to the user, creating it on first
// call. Two concurrent calls for the same user end up on the same profile.
func (bs *BorrowerService) RegisterOrGet(ctx context.Context, user User) (Borrower, error) {
	if user.ID == "" {
		return Borrower{}, InvalidFormat("User id is required.")
	}
	if borrower, ok, err := bs.FindByUserID(ctx, user.ID); err != nil || ok {
		return borrower, err
	}

	name := strings.TrimSpace(user.Name)
	if name == "" {
		name = user.ID
	}
	borrower, err := bs.borrowers.Create(ctx, Borrower{Name: name, UserID: user.ID, CreatedAt: bs.clock.Now()})
	dup, isDup := AsDuplicateKey(err)
	if !isDup {
		return borrower, err
	}

	// lost a race against another registration of the same user.
	existing, ok, ferr := bs.FindByUserID(ctx, user.ID)
	if ferr != nil {
		return Borrower{}, ferr
	}
	if ok {
		return existing, nil
	}
	bs.logger.Info("borrowers: name already taken by another profile",
		zap.String("user", user.ID),
		zap.String("field", dup.Field),
	)
	return Borrower{}, Conflict("Borrower with name(%s) already exists.", name)
}

func (bs *BorrowerService) List(ctx context.Context, params PageParams) (Page[Borrower], error) {
	return bs.borrowers.FindAllPaginated(ctx, params, nil)
}

func (bs *BorrowerService) Update(ctx context.Context, id string, name string) (Borrower, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Borrower{}, InvalidFormat("Borrower name is required.")
	}
	borrower, err := bs.borrowers.FindOneAndUpdate(ctx, ByID(id), func(b Borrower) (Borrower, error) {
		b.Name = name
		return b, nil
	})
	if _, ok := AsDuplicateKey(err); ok {
		return Borrower{}, Conflict("Borrower with name(%s) already exists.", name)
	}
	return borrower, notFoundAs(err, msgBorrowerNotFound)
}

func (bs *BorrowerService) Remove(ctx context.Context, id string) error {
	n, err := bs.borrowers.Remove(ctx, ByID(id))
	if err != nil {
		return err
	}
	if n == 0 {
		return NotFound(msgBorrowerNotFound)
	}
	return nil
}

func (bs *BorrowerService) findOne(ctx context.Context, filter Filter) (Borrower, bool, error) {
	borrower, err := bs.borrowers.FindOne(ctx, filter, msgBorrowerNotFound)
	if errors.Is(err, ErrNotFound) {
		return Borrower{}, false, nil
	}
	if err != nil {
		return Borrower{}, false, err
	}
	return borrower, true, nil
}
