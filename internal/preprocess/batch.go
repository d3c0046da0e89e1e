package preprocess

// Batch is a model input with a leading batch dimension. Data is laid out
// row-major in Shape order (NHWC) and keeps raw 0..255 sample values.
type Batch struct {
	Shape []int64
	Data  []float32
}

// Batch wraps the pixels into a batch of one: 1 x Height x Width x Channels.
func (p *PixelArray) Batch() *Batch {
	data := make([]float32, 0, Height*Width*Channels)
	for y := range p {
		for x := range p[y] {
			for c := range p[y][x] {
				data = append(data, float32(p[y][x][c]))
			}
		}
	}
	return &Batch{
		Shape: []int64{1, Height, Width, Channels},
		Data:  data,
	}
}

// Len returns the number of samples in the batch.
func (b *Batch) Len() int {
	if len(b.Shape) == 0 {
		return 0
	}
	return int(b.Shape[0])
}

// Instances splits the batch into nested per-sample arrays, the shape
// TensorFlow Serving's row format expects.
func (b *Batch) Instances() [][][][]float32 {
	instances := make([][][][]float32, b.Len())
	i := 0
	for n := range instances {
		rows := make([][][]float32, Height)
		for y := range rows {
			cols := make([][]float32, Width)
			for x := range cols {
				cols[x] = b.Data[i : i+Channels : i+Channels]
				i += Channels
			}
			rows[y] = cols
		}
		instances[n] = rows
	}
	return instances
}
