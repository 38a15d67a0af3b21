package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/webprobe/api/schemas"
	"github.com/xkilldash9x/webprobe/internal/engine"
	"github.com/xkilldash9x/webprobe/internal/locator"
)

// locatorFlags are shared by every command that takes a locator argument.
type locatorFlags struct {
	visual   bool
	wait     time.Duration
	navigate string
}

func (f *locatorFlags) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.visual, "visual", false, "treat the locator as a description for the vision model")
	cmd.Flags().DurationVar(&f.wait, "wait", 0, "wait up to this long for the element before acting")
	cmd.Flags().StringVar(&f.navigate, "navigate", "", "load this URL first")
}

func (f *locatorFlags) locator(arg string) schemas.Locator {
	if f.visual {
		return locator.Visual(arg)
	}
	return locator.Normalize(arg)
}

// prepare navigates and waits as requested.
func (f *locatorFlags) prepare(ctx context.Context, s Session, loc schemas.Locator) error {
	if f.navigate != "" {
		if err := s.Navigate(ctx, f.navigate); err != nil {
			return err
		}
	}
	if f.wait > 0 {
		if _, err := s.WaitFor(ctx, loc, engine.WaitOptions{Timeout: f.wait}); err != nil {
			return err
		}
	}
	return nil
}

// runAction performs one action and prints its result. A result that is not
// OK becomes the command's error so the exit code reflects it.
func runAction(cmd *cobra.Command, f *locatorFlags, action schemas.ActionKind, arg string, params schemas.ActionParams) error {
	return withSession(cmd, func(ctx context.Context, s Session) error {
		loc := f.locator(arg)
		if err := f.prepare(ctx, s, loc); err != nil {
			return err
		}
		res := s.Perform(ctx, action, loc, params)
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		if !res.OK() {
			return fmt.Errorf("%s %s: %s", action, loc, res.Error)
		}
		return nil
	})
}

func newFindCmd() *cobra.Command {
	var (
		f     locatorFlags
		count bool
	)
	cmd := &cobra.Command{
		Use:   "find <locator>",
		Short: "Resolve a locator and print the element handle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s Session) error {
				loc := f.locator(args[0])
				if err := f.prepare(ctx, s, loc); err != nil {
					return err
				}
				if count {
					n, err := s.Count(ctx, loc)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), map[string]any{"locator": loc, "count": n})
				}
				h, err := s.Find(ctx, loc)
				if err != nil {
					return err
				}
				if h == nil {
					return fmt.Errorf("%s: %w", loc, schemas.ErrNotFound)
				}
				return printJSON(cmd.OutOrStdout(), h)
			})
		},
	}
	f.bind(cmd)
	cmd.Flags().BoolVar(&count, "count", false, "print the number of matches instead")
	return cmd
}

func newClickCmd() *cobra.Command {
	var (
		f      locatorFlags
		button string
		count  int
	)
	cmd := &cobra.Command{
		Use:   "click <locator>",
		Short: "Click an element",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := schemas.ActionParams{Button: schemas.MouseButton(button), ClickCount: count}
			return runAction(cmd, &f, schemas.ActionClick, args[0], params)
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&button, "button", string(schemas.ButtonLeft), "mouse button: left, right or middle")
	cmd.Flags().IntVar(&count, "count", 1, "number of clicks")
	return cmd
}

func newTypeCmd() *cobra.Command {
	var (
		f      locatorFlags
		submit bool
	)
	cmd := &cobra.Command{
		Use:   "type <locator> <text>",
		Short: "Focus an element and type text into it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := schemas.ActionType
			if submit {
				action = schemas.ActionTypeSubmit
			}
			return runAction(cmd, &f, action, args[0], schemas.ActionParams{Text: args[1]})
		},
	}
	f.bind(cmd)
	cmd.Flags().BoolVar(&submit, "submit", false, "press Enter after typing")
	return cmd
}

func newFillCmd() *cobra.Command {
	var f locatorFlags
	cmd := &cobra.Command{
		Use:   "fill <locator> <text>",
		Short: "Clear an element and type text into it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, &f, schemas.ActionFill, args[0], schemas.ActionParams{Text: args[1]})
		},
	}
	f.bind(cmd)
	return cmd
}

func newPressCmd() *cobra.Command {
	var f locatorFlags
	cmd := &cobra.Command{
		Use:   "press <locator> <key>",
		Short: "Press a key or chord (e.g. Enter, Control+a) on an element",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, &f, schemas.ActionPress, args[0], schemas.ActionParams{Key: args[1]})
		},
	}
	f.bind(cmd)
	return cmd
}

func newScrollCmd() *cobra.Command {
	var (
		f      locatorFlags
		dx, dy float64
	)
	cmd := &cobra.Command{
		Use:   "scroll <locator>",
		Short: "Scroll with the pointer over an element",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, &f, schemas.ActionScroll, args[0], schemas.ActionParams{DeltaX: dx, DeltaY: dy})
		},
	}
	f.bind(cmd)
	cmd.Flags().Float64Var(&dx, "dx", 0, "horizontal scroll delta in pixels")
	cmd.Flags().Float64Var(&dy, "dy", 300, "vertical scroll delta in pixels")
	return cmd
}
