package fixtures

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/xuri/excelize/v2"
)

func gradient(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: uint8((x ^ y) & 0xff), A: 0xff})
		}
	}
	return img
}

// buildJPEG encodes a gradient and pads it with comment segments after SOI.
func buildJPEG(size int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gradient(320, 240), &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	enc := buf.Bytes()
	missing := size - len(enc)
	if missing <= 4 {
		return enc, nil
	}

	out := make([]byte, 0, size)
	out = append(out, enc[:2]...) // SOI
	const maxPayload = 0xffff - 2
	for missing > 4 {
		n := min(missing-4, maxPayload)
		out = append(out, 0xff, 0xfe)
		out = binary.BigEndian.AppendUint16(out, uint16(n+2))
		out = append(out, filler(n)...)
		missing -= n + 4
	}
	return append(out, enc[2:]...), nil
}

// buildPNG encodes a gradient and pads it with a private ancillary chunk
// placed before IEND.
func buildPNG(size int) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradient(320, 240)); err != nil {
		return nil, err
	}
	enc := buf.Bytes()
	const chunkOverhead = 12
	missing := size - len(enc) - chunkOverhead
	if missing <= 0 {
		return enc, nil
	}

	iend := len(enc) - chunkOverhead
	body := append([]byte("lnCt"), filler(missing)...)
	out := make([]byte, 0, len(enc)+len(body)+8)
	out = append(out, enc[:iend]...)
	out = binary.BigEndian.AppendUint32(out, uint32(missing))
	out = append(out, body...)
	out = binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(body))
	return append(out, enc[iend:]...), nil
}

// oleSignature opens every OLE2 compound document (legacy .xls and .doc).
var oleSignature = []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}

func buildOLE(size int) ([]byte, error) {
	out := make([]byte, max(size, 512))
	copy(out, oleSignature)
	binary.LittleEndian.PutUint16(out[24:], 0x003e) // minor version
	binary.LittleEndian.PutUint16(out[26:], 0x0003) // major version 3
	binary.LittleEndian.PutUint16(out[28:], 0xfffe) // byte order
	binary.LittleEndian.PutUint16(out[30:], 0x0009) // 512 byte sectors
	binary.LittleEndian.PutUint16(out[32:], 0x0006) // 64 byte mini sectors
	return out, nil
}

var (
	firstNames = []string{"Dulce", "Mara", "Philip", "Kathleen", "Nereida", "Gaston", "Etta", "Earlean", "Vincenza", "Fallon"}
	lastNames  = []string{"Abril", "Hashimoto", "Gent", "Hanner", "Magwood", "Brumm", "Hurn", "Melgar", "Weiland", "Winward"}
	countries  = []string{"United States", "Great Britain", "France"}
)

// buildXLSX writes the hundred row people sheet with excelize.
func buildXLSX(int) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	header := []any{"", "First Name", "Last Name", "Gender", "Country", "Age", "Date", "Id"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}
	for i := 1; i <= 100; i++ {
		gender := "Female"
		if i%3 == 0 {
			gender = "Male"
		}
		row := []any{
			i,
			firstNames[i%len(firstNames)],
			lastNames[(i*7)%len(lastNames)],
			gender,
			countries[i%len(countries)],
			20 + (i*13)%40,
			"15/10/2017",
			1000 + i*37,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// buildPDF writes a one page document with a correct xref table. An
// unreferenced stream object carries the padding.
func buildPDF(size int) ([]byte, error) {
	content := "BT /F1 18 Tf 72 720 Td (Lancet sample PDF) Tj ET"
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}
	render := func(pad int) []byte {
		objs := objects
		if pad > 0 {
			objs = append(objs[:len(objs):len(objs)], fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", pad, filler(pad)))
		}
		var buf bytes.Buffer
		buf.WriteString("%PDF-1.4\n")
		offsets := make([]int, len(objs))
		for i, o := range objs {
			offsets[i] = buf.Len()
			fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
		}
		xref := buf.Len()
		fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
		for _, off := range offsets {
			fmt.Fprintf(&buf, "%010d 00000 n \n", off)
		}
		fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
		return buf.Bytes()
	}

	base := render(0)
	// The padding object and its xref entry add roughly 80 bytes.
	if pad := size - len(base) - 80; pad > 0 {
		return render(pad), nil
	}
	return base, nil
}

const (
	docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Default Extension="bin" ContentType="application/octet-stream"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`
	docxRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`
	docxDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>Lancet sample document</w:t></w:r></w:p></w:body></w:document>`
)

// buildDOCX writes a minimal WordprocessingML package. Padding goes into a
// stored (uncompressed) part so the archive reaches the requested size.
func buildDOCX(size int) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct{ name, body string }{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRels},
		{"word/document.xml", docxDocument},
	}
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(p.body)); err != nil {
			return nil, err
		}
	}
	// Local header, central directory entry and end record.
	const overhead = 1024
	if pad := size - overhead; pad > 0 {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: "docProps/padding.bin", Method: zip.Store})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(filler(pad)); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
