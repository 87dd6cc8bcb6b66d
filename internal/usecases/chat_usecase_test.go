package usecases_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	domainerrors "kwala.backend/internal/domain/errors"
	"kwala.backend/internal/usecases"
)

type MockTextGenerator struct {
	mock.Mock
}

func (m *MockTextGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func TestChatUsecase_Complete(t *testing.T) {
	gen := new(MockTextGenerator)
	uc := usecases.NewChatUsecase(gen)

	gen.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.HasPrefix(prompt, "Write a cover letter\n\nPlease format the response") &&
			strings.HasSuffix(prompt, "maintain a clear structure with proper spacing.")
	})).Return("  **Header**  \n\n\n\nFirst paragraph.\n\n   \n\nSecond paragraph.  ", nil).Once()

	out, err := uc.Complete(context.Background(), "Write a cover letter")
	require.NoError(t, err)
	require.Equal(t, "**Header**\n\nFirst paragraph.\n\nSecond paragraph.", out)
	gen.AssertExpectations(t)
}

func TestChatUsecase_EmptyCompletion(t *testing.T) {
	gen := new(MockTextGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(" \n\n ", nil).Once()

	out, err := usecases.NewChatUsecase(gen).Complete(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, "No response", out)
}

func TestChatUsecase_Errors(t *testing.T) {
	gen := new(MockTextGenerator)
	uc := usecases.NewChatUsecase(gen)

	_, err := uc.Complete(context.Background(), "  ")
	require.ErrorIs(t, err, domainerrors.ErrBadRequest)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)

	gen.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("rate limited")).Once()
	_, err = uc.Complete(context.Background(), "hi")
	require.ErrorIs(t, err, domainerrors.ErrGenerationFailed)
	require.Contains(t, err.Error(), "rate limited")
}
