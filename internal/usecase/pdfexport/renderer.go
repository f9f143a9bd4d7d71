// Package pdfexport renders one observation, its categories and its action
// plans to a PDF document.
package pdfexport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"golang.org/x/sync/errgroup"

	"safetyportal/internal/bootstrap/logging"
	"safetyportal/internal/domain/report"
	"safetyportal/internal/errs"
	"safetyportal/internal/ports"
)

// ImageUnavailable is drawn in place of any image that cannot be loaded.
const ImageUnavailable = "Image not available"

const (
	pageMargin     = 15.0
	contentWidth   = 180.0
	labelWidth     = 45.0
	lineHeight     = 6.0
	mainImageBox   = 90.0
	planImageBox   = 40.0
	imageFetchJobs = 4
)

type Renderer struct {
	resolver *Resolver
	buckets  ports.Buckets
	now      func() time.Time
	compress bool
}

func NewRenderer(resolver *Resolver, buckets ports.Buckets) *Renderer {
	return &Renderer{
		resolver: resolver,
		buckets:  buckets,
		now:      func() time.Time { return time.Now().UTC() },
		compress: true,
	}
}

type loadedImage struct {
	name string
	typ  string
	data []byte
}

// Render writes detail as a PDF to w. Image failures never fail the render.
func (r *Renderer) Render(ctx context.Context, detail report.Detail, w io.Writer) error {
	if ctx == nil {
		return fmt.Errorf("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	obs := detail.Observation
	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.pdfexport"), slog.Uint64("observation_id", obs.ID))

	mainImage, planImages := r.loadImages(logCtx, detail)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetCompression(r.compress)
	pdf.SetTitle(fmt.Sprintf("Safety observation #%d", obs.ID), true)
	pdf.SetCreationDate(r.now())
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentWidth, 10, tr(fmt.Sprintf("Safety Observation #%d", obs.ID)), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentWidth, 5, tr("Generated "+r.now().Format("2006-01-02 15:04 MST")), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	fields := [][2]string{
		{"Project", obs.ProjectName},
		{"Company", obs.CompanyName},
		{"Submitted by", obs.SubmitterName},
		{"Date / time", obs.Date + " " + obs.Time},
		{"Location", obs.Location},
		{"Subject", string(obs.Subject)},
		{"Report group", obs.ReportGroup},
		{"Consequences", string(obs.Consequence)},
		{"Likelihood", string(obs.Likelihood)},
		{"Risk", fmt.Sprintf("%d (%s)", obs.RiskScore(), obs.RiskBand())},
		{"Status", string(obs.Status)},
		{"Categories", categoryNames(detail.Categories)},
	}
	for _, field := range fields {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(labelWidth, lineHeight, tr(field[0]), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(contentWidth-labelWidth, lineHeight, tr(field[1]), "", "L", false)
	}

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(contentWidth, lineHeight+1, tr("Description"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(contentWidth, lineHeight-1, tr(obs.Description), "", "L", false)

	if strings.TrimSpace(obs.ImageKey) != "" {
		pdf.Ln(3)
		drawImage(pdf, tr, mainImage, pageMargin, pdf.GetY(), mainImageBox)
		pdf.SetY(pdf.GetY() + mainImageBox + 3)
	}

	if len(detail.ActionPlans) > 0 {
		r.drawActionPlans(pdf, tr, detail.ActionPlans, planImages)
	}

	if err := pdf.Output(w); err != nil {
		return errs.Wrap(err, "write pdf")
	}
	return nil
}

var planColumns = []struct {
	title string
	width float64
}{
	{"Action", 55},
	{"Due", 22},
	{"Responsible", 30},
	{"Follow-up", 30},
	{"Status", 18},
	{"Image", 25},
}

func (r *Renderer) drawActionPlans(pdf *fpdf.Fpdf, tr func(string) string, plans []report.ActionPlan, images map[uint64]*loadedImage) {
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentWidth, 8, tr("Action Plans"), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for _, col := range planColumns {
		pdf.CellFormat(col.width, 7, tr(col.title), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, plan := range plans {
		rowHeight := lineHeight + 1
		if plan.ImageKey != "" {
			rowHeight = planColumns[len(planColumns)-1].width
		}
		_, pageHeight := pdf.GetPageSize()
		if pdf.GetY()+rowHeight > pageHeight-pageMargin {
			pdf.AddPage()
		}

		y := pdf.GetY()
		x := pageMargin
		values := []string{plan.Action, plan.DueDate, plan.ResponsiblePerson, plan.FollowUpContact, string(plan.Status)}
		for i, value := range values {
			pdf.Rect(x, y, planColumns[i].width, rowHeight, "D")
			pdf.SetXY(x+1, y+1)
			pdf.MultiCell(planColumns[i].width-2, 4, tr(value), "", "L", false)
			x += planColumns[i].width
		}
		imageWidth := planColumns[len(planColumns)-1].width
		pdf.Rect(x, y, imageWidth, rowHeight, "D")
		if plan.ImageKey != "" {
			drawImage(pdf, tr, images[plan.ID], x+1, y+1, imageWidth-2)
		} else {
			pdf.SetXY(x, y)
			pdf.CellFormat(imageWidth, rowHeight, "-", "", 0, "C", false, 0, "")
		}
		pdf.SetXY(pageMargin, y+rowHeight)
	}
}

// drawImage fits img in a box of the given side, or draws the placeholder.
func drawImage(pdf *fpdf.Fpdf, tr func(string) string, img *loadedImage, x, y, box float64) {
	if img != nil {
		opts := fpdf.ImageOptions{ImageType: img.typ, ReadDpi: false}
		info := pdf.RegisterImageOptionsReader(img.name, opts, bytes.NewReader(img.data))
		if info != nil && !pdf.Err() {
			w, h := info.Width(), info.Height()
			if w > 0 && h > 0 {
				scale := min(box/w, box/h)
				pdf.ImageOptions(img.name, x, y, w*scale, h*scale, false, opts, 0, "")
				return
			}
		}
		pdf.ClearError()
	}

	pdf.SetDrawColor(160, 160, 160)
	pdf.Rect(x, y, box, box*0.6, "D")
	pdf.SetXY(x, y+box*0.3-2)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.CellFormat(box, 4, tr(ImageUnavailable), "", 0, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetDrawColor(0, 0, 0)
}

// loadImages fetches the main image and every plan image concurrently. A
// missing entry means the image could not be loaded.
func (r *Renderer) loadImages(ctx context.Context, detail report.Detail) (*loadedImage, map[uint64]*loadedImage) {
	var main *loadedImage
	planImages := make(map[uint64]*loadedImage, len(detail.ActionPlans))
	results := make([]*loadedImage, len(detail.ActionPlans))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imageFetchJobs)
	if detail.Observation.ImageKey != "" {
		g.Go(func() error {
			main = r.loadImage(gctx, "observation", detail.Observation.ImageKey, r.buckets.Observation)
			return nil
		})
	}
	for i, plan := range detail.ActionPlans {
		if plan.ImageKey == "" {
			continue
		}
		g.Go(func() error {
			results[i] = r.loadImage(gctx, "plan-"+strconv.FormatUint(plan.ID, 10), plan.ImageKey, r.buckets.ActionPlan)
			return nil
		})
	}
	_ = g.Wait()

	for i, plan := range detail.ActionPlans {
		if results[i] != nil {
			planImages[plan.ID] = results[i]
		}
	}
	return main, planImages
}

func (r *Renderer) loadImage(ctx context.Context, name, ref, bucket string) *loadedImage {
	uri, err := r.resolver.DataURI(ctx, ref, bucket)
	if err == nil {
		var mime string
		var data []byte
		mime, data, err = DecodeDataURI(uri)
		if err == nil {
			if typ, ok := embeddable[mime]; ok {
				return &loadedImage{name: name, typ: typ, data: data}
			}
			err = fmt.Errorf("unsupported image type %q", mime)
		}
	}
	logging.Warn(ctx, "image not available", slog.String("ref", ref), slog.String("bucket", bucket), slog.Any("err", errs.Loggable(err)))
	return nil
}

func categoryNames(categories []report.Category) string {
	if len(categories) == 0 {
		return "-"
	}
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}
	return strings.Join(names, ", ")
}
