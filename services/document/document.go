package docsvc

import (
	"bytes"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/certificate"
	"github.com/trezcool/edugest/core/class"
	"github.com/trezcool/edugest/core/enrollment"
	"github.com/trezcool/edugest/core/payment"
	"github.com/trezcool/edugest/core/school"
	"github.com/trezcool/edugest/core/student"
)

// Document types, used as filename prefixes.
const (
	TypeReceipt          = "receipt"
	TypeCertificate      = "certificate"
	TypeFinancialReport  = "financial_report"
	TypeClassReport      = "class_report"
	TypePaymentReport    = "payment_report"
	TypeEnrollmentReport = "enrollment_report"

	ContentType = "application/pdf"

	dateLayout = "02/01/2006"
	qrSize     = 256
)

var (
	methodLabels = map[string]string{
		payment.MethodCash:         "Espèces",
		payment.MethodMobileMoney:  "Mobile Money",
		payment.MethodBankTransfer: "Virement bancaire",
		payment.MethodCheck:        "Chèque",
		payment.MethodCard:         "Carte",
	}
	typeLabels = map[string]string{
		payment.TypeRegistration:   "Inscription",
		payment.TypeMonthlyTuition: "Mensualité",
		payment.TypeTuition:        "Frais de scolarité",
		payment.TypeExamFee:        "Frais d'examen",
		payment.TypeUniform:        "Uniforme",
		payment.TypeTransport:      "Transport",
		payment.TypeOther:          "Autre",
	}
)

// Document is a rendered PDF.
type Document struct {
	Filename string
	Content  []byte
}

// Filename builds `<type>_<ref>_<YYYYMMDD-HHMMSS>.pdf`.
func Filename(docType, ref string, t time.Time) string {
	ref = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' {
			return '-'
		}
		return r
	}, ref)
	return fmt.Sprintf("%s_%s_%s.pdf", docType, ref, t.Format("20060102-150405"))
}

type Generator struct {
	conf   *core.Config
	logger core.Logger
}

func NewGenerator(conf *core.Config, logger core.Logger) *Generator {
	return &Generator{conf: conf, logger: logger}
}

// page wraps a gofpdf document with the cp1252 translator needed for French text.
type page struct {
	*gofpdf.Fpdf
	tr func(string) string
}

func (p *page) text(w, h float64, s, border string, ln int, align string, fill bool) {
	p.CellFormat(w, h, p.tr(s), border, ln, align, fill, 0, "")
}

func (p *page) table(headers []string, widths []float64, rows [][]string) {
	p.SetFont("Arial", "B", 9)
	p.SetFillColor(230, 230, 230)
	for i, h := range headers {
		p.text(widths[i], 7, h, "1", 0, "C", true)
	}
	p.Ln(-1)
	p.SetFont("Arial", "", 9)
	for _, row := range rows {
		for i, col := range row {
			align := "L"
			if i == len(row)-1 {
				align = "R"
			}
			p.text(widths[i], 6, col, "1", 0, align, false)
		}
		p.Ln(-1)
	}
}

func (g *Generator) newPage(sch school.School, title string) *page {
	pdf := gofpdf.New("P", "mm", "A4", "")
	p := &page{Fpdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	p.SetTitle(title, true)
	p.SetAuthor(sch.Name, true)
	p.SetCreator(g.conf.AppName, true)
	p.AddPage()

	left := 10.0
	if path := g.logoPath(sch); path != "" {
		p.ImageOptions(path, 10, 10, 22, 0, false, gofpdf.ImageOptions{ReadDpi: true}, 0, "")
		if p.Err() {
			g.logger.Warn(fmt.Sprintf("loading logo of school %s: %v", sch.Code, p.Error()))
			p.ClearError()
		} else {
			left = 36
		}
	}

	p.SetXY(left, 10)
	p.SetFont("Arial", "B", 14)
	p.text(0, 7, sch.Name, "", 1, "L", false)
	p.SetX(left)
	p.SetFont("Arial", "", 9)
	for _, line := range []string{sch.Address, joinNonEmpty(" | ", sch.Phone, sch.Email)} {
		if line != "" {
			p.text(0, 5, line, "", 1, "L", false)
			p.SetX(left)
		}
	}
	p.SetY(35)
	p.Line(10, 33, 200, 33)

	p.SetFont("Arial", "B", 16)
	p.text(0, 10, title, "", 1, "C", false)
	p.Ln(4)
	return p
}

func (g *Generator) logoPath(sch school.School) string {
	if sch.LogoPath == "" {
		return ""
	}
	if filepath.IsAbs(sch.LogoPath) || g.conf.Documents.LogoDir == "" {
		return sch.LogoPath
	}
	return filepath.Join(g.conf.Documents.LogoDir, sch.LogoPath)
}

func (g *Generator) verifyURL(docType, ref string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(g.conf.Documents.VerifyBaseURL, "/"), docType, url.PathEscape(ref))
}

// qr draws the verification code of the document at (x, y).
func (g *Generator) qr(p *page, docType, ref string, x, y, size float64) error {
	png, err := qrcode.Encode(g.verifyURL(docType, ref), qrcode.Medium, qrSize)
	if err != nil {
		return errors.Wrap(err, "encoding qr code")
	}
	name := "qr-" + ref
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	p.RegisterImageOptionsReader(name, opts, bytes.NewReader(png))
	p.ImageOptions(name, x, y, size, size, false, opts, 0, "")
	return nil
}

func (g *Generator) footer(p *page) {
	p.SetFooterFunc(func() {
		p.SetY(-15)
		p.SetFont("Arial", "I", 8)
		p.text(0, 10, fmt.Sprintf("%s - %s - page %d", g.conf.AppName, core.NowFunc().Format(dateLayout+" 15:04"), p.PageNo()), "", 0, "C", false)
	})
}

func output(p *page, filename string) (Document, error) {
	var buf bytes.Buffer
	if err := p.Output(&buf); err != nil {
		return Document{}, errors.Wrap(err, "rendering pdf")
	}
	return Document{Filename: filename, Content: buf.Bytes()}, nil
}

func (g *Generator) keyValues(p *page, pairs [][2]string) {
	for _, kv := range pairs {
		p.SetFont("Arial", "B", 10)
		p.text(50, 7, kv[0], "", 0, "L", false)
		p.SetFont("Arial", "", 10)
		p.text(0, 7, kv[1], "", 1, "L", false)
	}
}

// Receipt renders the receipt of a payment.
func (g *Generator) Receipt(sch school.School, stud student.Student, pmt payment.Payment) (Document, error) {
	p := g.newPage(sch, "Reçu de paiement")
	g.footer(p)
	cur := currency(sch, g.conf)

	p.SetFont("Arial", "B", 11)
	p.text(0, 8, "N° "+pmt.ReceiptNumber, "", 1, "R", false)
	g.keyValues(p, [][2]string{
		{"Élève", stud.FullName()},
		{"Matricule", stud.Matricule},
		{"Classe", stud.ClassName},
		{"Année scolaire", pmt.AcademicYear},
		{"Date", pmt.PaymentDate.Format(dateLayout)},
		{"Type", label(typeLabels, pmt.PaymentType)},
		{"Période", pmt.PaymentPeriod},
		{"Mode de paiement", label(methodLabels, pmt.PaymentMethod)},
		{"Référence", pmt.Reference},
	})
	p.Ln(4)
	p.SetFont("Arial", "B", 13)
	p.SetFillColor(240, 240, 240)
	p.text(0, 12, "Montant payé : "+FormatAmount(pmt.Amount, cur), "1", 1, "C", true)

	y := p.GetY() + 8
	if err := g.qr(p, TypeReceipt, pmt.ReceiptNumber, 160, y, 35); err != nil {
		return Document{}, err
	}
	p.SetXY(10, y+10)
	p.SetFont("Arial", "", 10)
	p.text(100, 6, "Signature et cachet", "", 1, "L", false)

	return output(p, Filename(TypeReceipt, stud.Matricule, core.NowFunc()))
}

// Certificate renders an issued certificate.
func (g *Generator) Certificate(sch school.School, stud student.Student, cert certificate.Certificate) (Document, error) {
	p := g.newPage(sch, cert.Title())
	g.footer(p)

	p.SetFont("Arial", "", 10)
	p.text(0, 6, "N° "+cert.SerialNumber, "", 1, "R", false)
	p.Ln(6)

	body := fmt.Sprintf(
		"Je soussigné(e), %s, %s de %s, certifie que l'élève %s, matricule %s",
		cert.SignatoryName, cert.SignatoryTitle, sch.Name, stud.FullName(), stud.Matricule,
	)
	if !stud.DateOfBirth.IsZero() {
		body += ", né(e) le " + stud.DateOfBirth.Format(dateLayout)
	}
	body += fmt.Sprintf(", %s en classe de %s pour l'année scolaire %s.", certificateVerb(cert.CertificateType), stud.ClassName, cert.AcademicYear)
	p.SetFont("Arial", "", 12)
	p.MultiCell(0, 7, p.tr(body), "", "J", false)
	if cert.Notes != "" {
		p.Ln(3)
		p.SetFont("Arial", "I", 10)
		p.MultiCell(0, 6, p.tr(cert.Notes), "", "L", false)
	}
	p.Ln(4)
	p.SetFont("Arial", "", 11)
	p.text(0, 7, "En foi de quoi, le présent certificat lui est délivré pour servir et valoir ce que de droit.", "", 1, "L", false)
	p.Ln(6)
	p.text(0, 7, fmt.Sprintf("Fait le %s", cert.IssueDate.Format(dateLayout)), "", 1, "R", false)
	p.SetFont("Arial", "B", 11)
	p.text(0, 7, cert.SignatoryName, "", 1, "R", false)
	p.SetFont("Arial", "", 10)
	p.text(0, 6, cert.SignatoryTitle, "", 1, "R", false)

	if err := g.qr(p, TypeCertificate, cert.SerialNumber, 10, p.GetY()+5, 30); err != nil {
		return Document{}, err
	}
	return output(p, Filename(TypeCertificate, stud.Matricule, core.NowFunc()))
}

func certificateVerb(certType string) string {
	switch certType {
	case certificate.TypeAttendance:
		return "fréquente régulièrement les cours"
	case certificate.TypeCompletion:
		return "a achevé son cycle d'études"
	case certificate.TypeConduct:
		return "a fait preuve d'une bonne conduite"
	case certificate.TypeTransfer:
		return "est autorisé(e) à poursuivre sa scolarité dans un autre établissement, ayant été inscrit(e)"
	default:
		return "est régulièrement inscrit(e)"
	}
}

// FinancialReport renders the payment statistics of a school with the payments of the period.
func (g *Generator) FinancialReport(sch school.School, period string, stats payment.Stats, payments []payment.Payment) (Document, error) {
	p := g.newPage(sch, "Rapport financier")
	g.footer(p)
	cur := currency(sch, g.conf)

	if period != "" {
		p.SetFont("Arial", "", 10)
		p.text(0, 6, "Période : "+period, "", 1, "C", false)
		p.Ln(2)
	}
	p.table(
		[]string{"Indicateur", "Paiements", "Montant"},
		[]float64{90, 40, 60},
		[][]string{
			bucketRow("Aujourd'hui", stats.Today, cur),
			bucketRow("Ce mois", stats.ThisMonth, cur),
			bucketRow("Cette année", stats.ThisYear, cur),
			bucketRow("Total", stats.Total, cur),
		},
	)
	p.Ln(5)
	p.table([]string{"Mode de paiement", "Montant"}, []float64{130, 60}, amountRows(stats.ByMethod, payment.Methods, methodLabels, cur))
	p.Ln(5)
	p.table([]string{"Type de paiement", "Montant"}, []float64{130, 60}, amountRows(stats.ByType, payment.Types, typeLabels, cur))

	if len(payments) > 0 {
		p.Ln(5)
		g.paymentTable(p, payments, cur)
	}
	return output(p, Filename(TypeFinancialReport, sch.Code, core.NowFunc()))
}

// PaymentReport renders a list of payments.
func (g *Generator) PaymentReport(sch school.School, payments []payment.Payment) (Document, error) {
	p := g.newPage(sch, "Rapport des paiements")
	g.footer(p)
	cur := currency(sch, g.conf)

	total := decimal.Zero
	for _, pmt := range payments {
		total = total.Add(pmt.Amount)
	}
	p.SetFont("Arial", "", 10)
	p.text(0, 6, fmt.Sprintf("%d paiement(s), total %s", len(payments), FormatAmount(total, cur)), "", 1, "L", false)
	p.Ln(2)
	g.paymentTable(p, payments, cur)
	return output(p, Filename(TypePaymentReport, sch.Code, core.NowFunc()))
}

func (g *Generator) paymentTable(p *page, payments []payment.Payment, cur string) {
	rows := make([][]string, 0, len(payments))
	for _, pmt := range payments {
		rows = append(rows, []string{
			pmt.ReceiptNumber,
			pmt.PaymentDate.Format(dateLayout),
			label(typeLabels, pmt.PaymentType),
			label(methodLabels, pmt.PaymentMethod),
			FormatAmount(pmt.Amount, cur),
		})
	}
	p.table([]string{"Reçu", "Date", "Type", "Mode", "Montant"}, []float64{45, 25, 40, 40, 40}, rows)
}

// ClassReport renders the occupancy and expected revenue of each class.
func (g *Generator) ClassReport(sch school.School, summary class.Summary) (Document, error) {
	p := g.newPage(sch, "Rapport des classes")
	g.footer(p)
	cur := currency(sch, g.conf)

	rows := make([][]string, 0, len(summary.Classes)+1)
	for _, cs := range summary.Classes {
		rows = append(rows, []string{
			cs.Name,
			cs.AcademicYear,
			fmt.Sprintf("%d / %d", cs.StudentCount, cs.Capacity),
			fmt.Sprintf("%.1f %%", cs.OccupancyRate),
			FormatAmount(cs.ExpectedRevenue, cur),
		})
	}
	rows = append(rows, []string{
		"Total",
		"",
		fmt.Sprintf("%d / %d", summary.TotalStudents, summary.TotalCapacity),
		fmt.Sprintf("%.1f %%", summary.OccupancyRate),
		FormatAmount(summary.ExpectedRevenue, cur),
	})
	p.table([]string{"Classe", "Année", "Effectif", "Occupation", "Revenu attendu"}, []float64{45, 30, 30, 30, 55}, rows)
	return output(p, Filename(TypeClassReport, sch.Code, core.NowFunc()))
}

// EnrollmentReport renders a list of enrollments with their status breakdown.
func (g *Generator) EnrollmentReport(sch school.School, counts map[string]int, enrollments []enrollment.Enrollment) (Document, error) {
	p := g.newPage(sch, "Rapport des inscriptions")
	g.footer(p)

	countRows := make([][]string, 0, len(enrollment.Statuses))
	for _, status := range enrollment.Statuses {
		countRows = append(countRows, []string{status, fmt.Sprint(counts[status])})
	}
	p.table([]string{"Statut", "Nombre"}, []float64{130, 60}, countRows)
	p.Ln(5)

	rows := make([][]string, 0, len(enrollments))
	for _, e := range enrollments {
		className := e.RequestedClass
		if e.ApprovedClass != "" {
			className = e.ApprovedClass
		}
		rows = append(rows, []string{
			e.StudentName,
			e.EnrollmentType,
			className,
			e.AcademicYear,
			e.Status,
		})
	}
	p.table([]string{"Élève", "Type", "Classe", "Année", "Statut"}, []float64{60, 30, 35, 30, 35}, rows)
	return output(p, Filename(TypeEnrollmentReport, sch.Code, core.NowFunc()))
}

func bucketRow(name string, b payment.Bucket, cur string) []string {
	return []string{name, fmt.Sprint(b.Count), FormatAmount(b.Amount, cur)}
}

func amountRows(amounts map[string]decimal.Decimal, keys []string, labels map[string]string, cur string) [][]string {
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		if amt, ok := amounts[k]; ok {
			rows = append(rows, []string{label(labels, k), FormatAmount(amt, cur)})
		}
	}
	return rows
}

func label(labels map[string]string, key string) string {
	if l, ok := labels[key]; ok {
		return l
	}
	return key
}

func currency(sch school.School, conf *core.Config) string {
	if sch.Currency != "" {
		return sch.Currency
	}
	return conf.Payments.Currency
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// FormatAmount formats amounts the French way: "1 250 000 FCFA", decimals only when needed.
func FormatAmount(amount decimal.Decimal, cur string) string {
	s := amount.StringFixed(2)
	s = strings.TrimSuffix(s, ".00")
	intPart, frac, _ := strings.Cut(s, ".")
	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteString("," + frac)
	}
	if cur != "" {
		b.WriteString(" " + cur)
	}
	return b.String()
}
