package mapping

import (
	"strings"

	"go.uber.org/zap"

	"github.com/a3tai/visa-pdf-filler/internal/apperrors"
	"github.com/a3tai/visa-pdf-filler/internal/fields"
	"github.com/a3tai/visa-pdf-filler/internal/records"
)

// Resolver evaluates mapping specs. It holds no per-request state and is
// safe for concurrent use.
type Resolver struct {
	logger *zap.Logger
	exprs  *exprEvaluator
}

// NewResolver creates a resolver
func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{
		logger: logger,
		exprs:  newExprEvaluator(),
	}
}

// Resolve computes the field values spec derives from rc. Rules whose source
// is unset are omitted; conditional groups emit only the case matching their
// discriminator, or nothing at all.
func (r *Resolver) Resolve(spec *Spec, rc records.Context) (fields.Values, error) {
	if spec == nil {
		return nil, apperrors.New(apperrors.KindConfig, "no mapping spec given")
	}
	if !rc.HasTraveler() {
		return nil, apperrors.Validation("context has no traveler record")
	}

	values := make(fields.Values)
	if err := r.apply(spec.Rules, rc, values); err != nil {
		return nil, err
	}

	for _, group := range spec.Groups {
		selected := rc.Discriminators().Value(group.Discriminator)
		rules, ok := group.Cases[selected]
		if !ok {
			r.logSkippedGroup(spec, group, rc, selected)
			continue
		}
		if err := r.apply(rules, rc, values); err != nil {
			return nil, err
		}
	}

	return values, nil
}

func (r *Resolver) apply(rules []Rule, rc records.Context, values fields.Values) error {
	for _, rule := range rules {
		v, ok, err := r.evaluate(rule.Source, rc)
		if err != nil {
			return apperrors.Wrap(apperrors.KindConfig, err, "field %q could not be resolved", rule.Field)
		}
		if ok {
			values[rule.Field] = v
		}
	}
	return nil
}

func (r *Resolver) evaluate(src Source, rc records.Context) (fields.Value, bool, error) {
	switch src.Type {
	case SourceField:
		v, ok, err := rc.Lookup(src.Path)
		if err != nil || !ok {
			return fields.Value{}, false, err
		}
		return fields.Text(v), true, nil

	case SourceDate:
		v, ok, err := rc.Lookup(src.Path)
		if err != nil || !ok {
			return fields.Value{}, false, err
		}
		formatted, ok := formatDate(v, src.Format)
		if !ok {
			r.logger.Debug("date value not rendered", zap.String("path", src.Path), zap.String("value", v))
			return fields.Value{}, false, nil
		}
		return fields.Text(formatted), true, nil

	case SourceLiteral:
		if src.Checked != nil {
			return fields.Bool(*src.Checked), true, nil
		}
		return fields.Text(src.Value), true, nil

	case SourceCoalesce:
		for _, path := range src.Paths {
			v, ok, err := rc.Lookup(path)
			if err != nil {
				return fields.Value{}, false, err
			}
			if ok {
				return fields.Text(v), true, nil
			}
		}
		return fields.Value{}, false, nil

	case SourceJoin:
		sep := " "
		if src.Separator != nil {
			sep = *src.Separator
		}
		var parts []string
		for _, path := range src.Paths {
			v, ok, err := rc.Lookup(path)
			if err != nil {
				return fields.Value{}, false, err
			}
			if ok {
				parts = append(parts, v)
			}
		}
		if len(parts) == 0 {
			return fields.Value{}, false, nil
		}
		return fields.Text(strings.Join(parts, sep)), true, nil

	case SourceCheck:
		v, ok, err := rc.Lookup(src.Path)
		if err != nil || !ok {
			return fields.Value{}, false, err
		}
		return fields.Bool(strings.EqualFold(v, strings.TrimSpace(src.Equals))), true, nil

	case SourceExpr:
		prg, err := r.exprs.program(src.Expr)
		if err != nil {
			return fields.Value{}, false, err
		}
		v, ok, err := run(prg, src.Expr, rc)
		if err != nil {
			// Missing map keys surface as evaluation errors; treat them as unset.
			r.logger.Debug("expression left field unset", zap.String("expr", src.Expr), zap.Error(err))
			return fields.Value{}, false, nil
		}
		return v, ok, nil

	default:
		return fields.Value{}, false, apperrors.New(apperrors.KindConfig, "unknown source type %q", src.Type)
	}
}

func (r *Resolver) logSkippedGroup(spec *Spec, group Group, rc records.Context, selected string) {
	raw := rawDiscriminator(group.Discriminator, rc)
	logFields := []zap.Field{
		zap.String("country", spec.Country),
		zap.String("group", group.Name),
		zap.String("discriminator", string(group.Discriminator)),
	}
	switch {
	case raw == "":
		r.logger.Debug("conditional group skipped, discriminator absent", logFields...)
	case selected == "":
		r.logger.Warn("conditional group skipped, unrecognised discriminator value",
			append(logFields, zap.String("raw_value", raw))...)
	default:
		r.logger.Info("conditional group skipped, no case for discriminator value",
			append(logFields, zap.String("value", selected))...)
	}
}

func rawDiscriminator(d records.Discriminator, rc records.Context) string {
	if d == records.DiscVisaCategory {
		return rc.Applicant().Value(string(d))
	}
	return rc.Questions().Value(string(d))
}
