package verify

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// One step of the commit sequence with its undo action
type Step struct {
	Name       string
	Apply      func(tx *gorm.DB) error
	Compensate func(tx *gorm.DB) error
}

// Ordered steps executed either in one database transaction
// or one by one, undoing the finished steps in reverse order upon failure.
type Saga struct {
	steps          []Step
	useTransaction bool

	// Called for every failed compensation
	onCompensationError func(step string, err error)
}

func NewSaga(useTransaction bool) *Saga {
	return &Saga{useTransaction: useTransaction}
}

func (self *Saga) WithStep(name string, apply, compensate func(tx *gorm.DB) error) *Saga {
	self.steps = append(self.steps, Step{Name: name, Apply: apply, Compensate: compensate})
	return self
}

func (self *Saga) WithOnCompensationError(f func(step string, err error)) *Saga {
	self.onCompensationError = f
	return self
}

func (self *Saga) Run(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)
	if self.useTransaction {
		return db.Transaction(func(tx *gorm.DB) error {
			for _, step := range self.steps {
				err := step.Apply(tx)
				if err != nil {
					return fmt.Errorf("%s: %w", step.Name, err)
				}
			}
			return nil
		})
	}

	for i, step := range self.steps {
		err := apply(db, step.Apply)
		if err == nil {
			continue
		}

		// Undo even if the caller gave up on the context
		err = fmt.Errorf("%s: %w", step.Name, err)
		return errors.Join(err, self.compensate(db.WithContext(context.WithoutCancel(ctx)), i-1))
	}
	return nil
}

// Undoes steps [0, last] in reverse order. Every compensation is attempted.
func (self *Saga) compensate(db *gorm.DB, last int) error {
	var errs []error
	for i := last; i >= 0; i-- {
		step := self.steps[i]
		if step.Compensate == nil {
			continue
		}

		err := apply(db, step.Compensate)
		if err == nil {
			continue
		}

		err = fmt.Errorf("compensate %s: %w", step.Name, err)
		errs = append(errs, err)
		if self.onCompensationError != nil {
			self.onCompensationError(step.Name, err)
		}
	}
	return errors.Join(errs...)
}

// Runs f in its own transaction, rolled back on error and on panic.
// Panics count as a failed step, finished steps still get undone.
func apply(db *gorm.DB, f func(tx *gorm.DB) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return db.Transaction(f)
}
