package hclload

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/snipweave/internal/config"
	"github.com/vk/snipweave/internal/ctxlog"
	"github.com/vk/snipweave/internal/schema"
	"github.com/vk/snipweave/internal/snippet"
)

// translateSettings converts the HCL-specific settings schema into the
// agnostic model, filling anything unset with the defaults.
func translateSettings(s *schema.Settings) config.Settings {
	out := config.Settings{
		MaxDepth:    s.MaxDepth,
		MaxParallel: s.MaxParallel,
		Timeout:     time.Duration(s.TimeoutMS) * time.Millisecond,
		LazyLoad:    s.LazyLoad,
	}

	if c := s.Cache; c != nil {
		if c.Enabled != nil {
			out.Cache.Disabled = !*c.Enabled
		}
		out.Cache.TTL = time.Duration(c.TTLMS) * time.Millisecond
		out.Cache.MaxSize = c.MaxSize
		out.Cache.Policy = strings.ToLower(c.Policy)
	}

	if e := s.OnError; e != nil {
		out.OnError.Missing = e.Missing
		out.OnError.Circular = e.Circular
		out.OnError.Permission = e.Permission
		out.OnError.Network = e.Network
		out.OnError.Timeout = e.Timeout
		out.OnError.RetryAttempts = e.RetryAttempts
		out.OnError.RetryDelay = time.Duration(e.RetryDelayMS) * time.Millisecond
		out.OnError.FallbackText = e.FallbackText
	}

	return out.Normalize()
}

// translateCollection converts the HCL-specific collection schema into the
// agnostic model.
func (l *Loader) translateCollection(ctx context.Context, c *schema.Collection) (*config.Collection, error) {
	if strings.Contains(c.Name, ":") {
		return nil, fmt.Errorf("collection name %q must not contain %q", c.Name, ":")
	}

	out := &config.Collection{
		Name:        c.Name,
		Description: c.Description,
		Restricted:  c.Restricted,
	}

	for _, s := range c.Snippets {
		translated, err := l.translateSnippet(s, c.Name)
		if err != nil {
			return nil, fmt.Errorf("collection %q: %w", c.Name, err)
		}
		out.Snippets = append(out.Snippets, translated)
	}

	ctxlog.FromContext(ctx).Debug("Translated collection.", "name", c.Name, "snippets", len(out.Snippets), "restricted", c.Restricted)
	return out, nil
}

// translateSnippet converts one snippet block. A missing id is derived from
// the collection name and trigger. Triggers and ids must not contain a
// colon; it is reserved by the reference grammar.
func (l *Loader) translateSnippet(s *schema.Snippet, collection string) (*snippet.Snippet, error) {
	if strings.Contains(s.Trigger, ":") {
		return nil, fmt.Errorf("snippet trigger %q must not contain %q", s.Trigger, ":")
	}
	if strings.Contains(s.ID, ":") {
		return nil, fmt.Errorf("snippet id %q must not contain %q", s.ID, ":")
	}

	id := s.ID
	if id == "" {
		id = collection + "." + strings.TrimPrefix(s.Trigger, "/")
	}

	out := &snippet.Snippet{
		ID:           id,
		Trigger:      s.Trigger,
		Body:         s.Body,
		Description:  s.Description,
		Dependencies: s.DependsOn,
		Collection:   collection,
	}

	for _, v := range s.Variables {
		translated, err := translateVariable(v)
		if err != nil {
			return nil, fmt.Errorf("snippet %q: %w", s.Trigger, err)
		}
		out.Variables = append(out.Variables, translated)
	}

	return out, nil
}

// translateVariable converts one variable block, normalizing a typed default
// (number, bool) to its string form.
func translateVariable(v *schema.Variable) (*snippet.Variable, error) {
	out := &snippet.Variable{
		Name:   v.Name,
		Prompt: v.Prompt,
	}

	if v.Default != nil && !v.Default.IsNull() {
		converted, err := convert.Convert(*v.Default, cty.String)
		if err != nil {
			return nil, fmt.Errorf("variable %q: default is not convertible to string: %w", v.Name, err)
		}
		out.Default = converted.AsString()
		out.HasDefault = true
	}

	return out, nil
}
